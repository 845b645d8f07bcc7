package popup

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	ListTTL       time.Duration
	RecordTTL     time.Duration
	RecordEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ListTTL:       30 * time.Second,
		RecordTTL:     5 * time.Minute,
		RecordEntries: 256,
	}
}

type MetricsSnapshot struct {
	ListHits     uint64
	ListMisses   uint64
	RecordHits   uint64
	RecordMisses uint64
	OriginReads  uint64
	OriginWrites uint64
}

type metrics struct {
	listHits     atomic.Uint64
	listMisses   atomic.Uint64
	recordHits   atomic.Uint64
	recordMisses atomic.Uint64
	originReads  atomic.Uint64
	originWrites atomic.Uint64
}

const activeListKey = "active"

// CachedStore is a read-through cache in front of a popup Store. Writes go
// to the origin first and invalidate the cached list.
type CachedStore struct {
	origin Store

	lists   *expirable.LRU[string, []Record]
	records *expirable.LRU[int, Record]
	metrics metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = def.RecordTTL
	}
	if cfg.RecordEntries <= 0 {
		cfg.RecordEntries = def.RecordEntries
	}
	return &CachedStore{
		origin:  origin,
		lists:   expirable.NewLRU[string, []Record](1, nil, cfg.ListTTL),
		records: expirable.NewLRU[int, Record](cfg.RecordEntries, nil, cfg.RecordTTL),
	}
}

func (s *CachedStore) ListActive(ctx context.Context) ([]Record, error) {
	if list, ok := s.lists.Get(activeListKey); ok {
		s.metrics.listHits.Add(1)
		return append([]Record(nil), list...), nil
	}
	s.metrics.listMisses.Add(1)
	s.metrics.originReads.Add(1)

	list, err := s.origin.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	copied := append([]Record(nil), list...)
	s.lists.Add(activeListKey, copied)
	return append([]Record(nil), copied...), nil
}

func (s *CachedStore) Get(ctx context.Context, id int) (Record, error) {
	if r, ok := s.records.Get(id); ok {
		s.metrics.recordHits.Add(1)
		return r, nil
	}
	s.metrics.recordMisses.Add(1)
	s.metrics.originReads.Add(1)

	r, err := s.origin.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	s.records.Add(id, r)
	return r, nil
}

func (s *CachedStore) Put(ctx context.Context, rec Record) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, rec); err != nil {
		return err
	}
	s.records.Remove(rec.ID)
	s.lists.Remove(activeListKey)
	return nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		ListHits:     s.metrics.listHits.Load(),
		ListMisses:   s.metrics.listMisses.Load(),
		RecordHits:   s.metrics.recordHits.Load(),
		RecordMisses: s.metrics.recordMisses.Load(),
		OriginReads:  s.metrics.originReads.Load(),
		OriginWrites: s.metrics.originWrites.Load(),
	}
}

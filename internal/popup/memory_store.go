package popup

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[int]Record
}

func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{byID: make(map[int]Record, len(records))}
	for _, r := range records {
		s.byID[r.ID] = normalizeRecord(r)
	}
	return s
}

func (s *MemoryStore) ListActive(_ context.Context) ([]Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.byID))
	for _, r := range s.byID {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id int) (Record, error) {
	if s == nil {
		return Record{}, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if rec.ID <= 0 {
		return fmt.Errorf("popup id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = normalizeRecord(rec)
	return nil
}

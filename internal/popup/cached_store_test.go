package popup

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeOriginStore struct {
	*MemoryStore
	listCalls int
	getCalls  int
	failPut   bool
}

func (s *fakeOriginStore) ListActive(ctx context.Context) ([]Record, error) {
	s.listCalls++
	return s.MemoryStore.ListActive(ctx)
}

func (s *fakeOriginStore) Get(ctx context.Context, id int) (Record, error) {
	s.getCalls++
	return s.MemoryStore.Get(ctx, id)
}

func (s *fakeOriginStore) Put(ctx context.Context, rec Record) error {
	if s.failPut {
		return errors.New("put failed")
	}
	return s.MemoryStore.Put(ctx, rec)
}

func TestCachedStoreReadThrough(t *testing.T) {
	origin := &fakeOriginStore{MemoryStore: NewMemoryStore(
		Record{ID: 1, Title: "Open house", IsActive: true},
		Record{ID: 2, Title: "Old notice", IsActive: false},
	)}
	store := NewCachedStore(origin, DefaultCacheConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := store.ListActive(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != 1 {
			t.Fatalf("unexpected list: %+v", list)
		}
	}
	if origin.listCalls != 1 {
		t.Fatalf("expected one origin list call, got %d", origin.listCalls)
	}

	if _, err := store.Get(ctx, 2); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, err := store.Get(ctx, 2); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if origin.getCalls != 1 {
		t.Fatalf("expected one origin get call, got %d", origin.getCalls)
	}
	if _, err := store.Get(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m := store.Metrics()
	if m.ListHits != 2 || m.ListMisses != 1 || m.RecordHits != 1 || m.RecordMisses != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestCachedStorePutInvalidates(t *testing.T) {
	origin := &fakeOriginStore{MemoryStore: NewMemoryStore(Record{ID: 1, IsActive: true})}
	store := NewCachedStore(origin, DefaultCacheConfig())
	ctx := context.Background()

	if _, err := store.ListActive(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if err := store.Put(ctx, Record{ID: 2, Title: "Seminar", IsActive: true, Styles: Styles{PopupSize: SizeLarge}}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	list, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 active popups after put, got %d", len(list))
	}
	if list[1].Styles.PopupSize != SizeLarge {
		t.Fatalf("unexpected size %q", list[1].Styles.PopupSize)
	}

	origin.failPut = true
	if err := store.Put(ctx, Record{ID: 3, IsActive: true}); err == nil {
		t.Fatalf("expected put error")
	}
	if list, _ := store.ListActive(ctx); len(list) != 2 {
		t.Fatalf("failed put must not change the list, got %d", len(list))
	}
}

func TestCachedStoreTTL(t *testing.T) {
	origin := &fakeOriginStore{MemoryStore: NewMemoryStore(Record{ID: 1, IsActive: true})}
	store := NewCachedStore(origin, CacheConfig{ListTTL: 10 * time.Millisecond, RecordTTL: time.Minute, RecordEntries: 4})
	ctx := context.Background()

	if _, err := store.ListActive(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := store.ListActive(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if origin.listCalls != 2 {
		t.Fatalf("expected 2 origin list calls after ttl expiry, got %d", origin.listCalls)
	}
}

func TestNormalizeRecordDefaultsSize(t *testing.T) {
	r := normalizeRecord(Record{ID: 1, Title: "  Hi ", Styles: Styles{PopupSize: "xl"}})
	if r.Title != "Hi" || r.Styles.PopupSize != SizeMedium {
		t.Fatalf("unexpected normalized record: %+v", r)
	}
}

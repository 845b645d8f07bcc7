package media

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memoryObject struct {
	contentType string
	data        []byte
}

// MemoryStore serves uploads from process memory under baseURL.
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		objects: make(map[string]memoryObject),
	}
}

func (s *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s == nil {
		return "", &StorageError{Op: "upload", Key: key, Err: fmt.Errorf("store is nil")}
	}
	key, err := CleanKey(key)
	if err != nil {
		return "", &StorageError{Op: "upload", Key: key, Err: err}
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{contentType: contentType, data: append([]byte(nil), data...)}
	s.mu.Unlock()
	return s.PublicURL(ctx, key)
}

func (s *MemoryStore) PublicURL(_ context.Context, key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", &StorageError{Op: "url", Key: key, Err: err}
	}
	return s.baseURL + "/" + escapeKey(key), nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return &StorageError{Op: "remove", Key: key, Err: ErrNotFound}
	}
	delete(s.objects, key)
	return nil
}

// Object returns a stored object; the gateway serves these in local mode.
func (s *MemoryStore) Object(key string) ([]byte, string, bool) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

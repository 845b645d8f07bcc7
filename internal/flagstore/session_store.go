package flagstore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSessionEntries = 65536
	DefaultSessionTTL     = 12 * time.Hour
)

// SessionStore holds flags that die with the browsing session. Entries are
// bounded and expire ttl after they were last written.
type SessionStore struct {
	cache *expirable.LRU[string, bool]
}

func NewSessionStore(maxEntries int, ttl time.Duration) *SessionStore {
	if maxEntries <= 0 {
		maxEntries = DefaultSessionEntries
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		cache: expirable.NewLRU[string, bool](maxEntries, nil, ttl),
	}
}

func (s *SessionStore) Get(_ context.Context, key string) (bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return false, err
	}
	v, ok := s.cache.Get(key)
	return ok && v, nil
}

func (s *SessionStore) Set(_ context.Context, key string, value bool) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if !value {
		s.cache.Remove(key)
		return nil
	}
	s.cache.Add(key, true)
	return nil
}

// Len reports live entries.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}

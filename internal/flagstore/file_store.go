package flagstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileEntry struct {
	Until *time.Time `json:"until,omitempty"`
}

// FileStore persists durable flags in a JSON file. The file is read once and
// rewritten after every change.
type FileStore struct {
	path string
	now  func() time.Time

	loadOnce sync.Once
	loadErr  error
	mu       sync.RWMutex
	flags    map[string]fileEntry
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:  path,
		now:   time.Now,
		flags: make(map[string]fileEntry),
	}
}

func (s *FileStore) ensureLoaded() error {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			s.loadErr = fmt.Errorf("read flag file: %w", err)
			return
		}
		if len(b) == 0 {
			return
		}
		var rows map[string]fileEntry
		if err := json.Unmarshal(b, &rows); err != nil {
			s.loadErr = fmt.Errorf("decode flag file: %w", err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for k, v := range rows {
			s.flags[k] = v
		}
	})
	return s.loadErr
}

func (s *FileStore) Get(_ context.Context, key string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return false, err
	}
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	s.mu.RLock()
	entry, ok := s.flags[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if entry.Until != nil && !s.now().Before(*entry.Until) {
		return false, nil
	}
	return true, nil
}

func (s *FileStore) Set(_ context.Context, key string, value bool) error {
	return s.put(key, value, nil)
}

func (s *FileStore) SetUntil(_ context.Context, key string, until time.Time) error {
	u := until.UTC()
	return s.put(key, true, &u)
}

func (s *FileStore) put(key string, value bool, until *time.Time) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if value {
		s.flags[key] = fileEntry{Until: until}
	} else {
		delete(s.flags, key)
	}
	return s.saveLocked()
}

func (s *FileStore) saveLocked() error {
	now := s.now()
	rows := make(map[string]fileEntry, len(s.flags))
	for k, v := range s.flags {
		if v.Until != nil && !now.Before(*v.Until) {
			delete(s.flags, k)
			continue
		}
		rows[k] = v
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create flag dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write flag file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Store uploads public assets: editor images and archived simulation frames.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	PublicURL(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("media object not found")

// StorageError is shown next to the form field that triggered it.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CleanKey normalizes an object key and rejects keys escaping the bucket root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return cleaned, nil
}

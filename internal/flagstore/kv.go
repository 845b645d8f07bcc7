package flagstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// KV is a boolean flag store. Absent keys read as false.
type KV interface {
	Get(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value bool) error
}

// ExpiringKV can store a flag that reads as false after until.
type ExpiringKV interface {
	KV
	SetUntil(ctx context.Context, key string, until time.Time) error
}

var ErrEmptyKey = errors.New("flag key is required")

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}

type scoped struct {
	inner     KV
	namespace string
}

type scopedExpiring struct {
	scoped
	exp ExpiringKV
}

// Scoped prefixes every key with namespace, so one backing store can hold
// the flags of many visitors. The result is an ExpiringKV when inner is.
func Scoped(inner KV, namespace string) KV {
	s := scoped{inner: inner, namespace: strings.TrimSpace(namespace) + ":"}
	if exp, ok := inner.(ExpiringKV); ok {
		return &scopedExpiring{scoped: s, exp: exp}
	}
	return &s
}

func (s *scoped) Get(ctx context.Context, key string) (bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return false, err
	}
	return s.inner.Get(ctx, s.namespace+key)
}

func (s *scoped) Set(ctx context.Context, key string, value bool) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, s.namespace+key, value)
}

func (s *scopedExpiring) SetUntil(ctx context.Context, key string, until time.Time) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.exp.SetUntil(ctx, s.namespace+key, until)
}

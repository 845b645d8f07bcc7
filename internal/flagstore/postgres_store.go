package flagstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps durable flags in the popup_flags table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS popup_flags (
  flag_key TEXT PRIMARY KEY,
  expires_at TIMESTAMP WITH TIME ZONE,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_popup_flags_expires_at ON popup_flags (expires_at);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Get(ctx context.Context, key string) (bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return false, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}
	var expiresAt sql.NullTime
	err = s.db.QueryRowContext(ctx, `SELECT expires_at FROM popup_flags WHERE flag_key = $1`, key).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if expiresAt.Valid && !s.now().Before(expiresAt.Time) {
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value bool) error {
	if !value {
		return s.delete(ctx, key)
	}
	return s.upsert(ctx, key, sql.NullTime{})
}

func (s *PostgresStore) SetUntil(ctx context.Context, key string, until time.Time) error {
	return s.upsert(ctx, key, sql.NullTime{Time: until, Valid: true})
}

func (s *PostgresStore) upsert(ctx context.Context, key string, expiresAt sql.NullTime) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO popup_flags (flag_key, expires_at, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (flag_key)
DO UPDATE SET expires_at=EXCLUDED.expires_at, updated_at=EXCLUDED.updated_at`,
		key, expiresAt, s.now())
	return err
}

func (s *PostgresStore) delete(ctx context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM popup_flags WHERE flag_key = $1`, key)
	return err
}

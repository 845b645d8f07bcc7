package popup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS popups (
  id INTEGER PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  link_url TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT FALSE,
  popup_size TEXT NOT NULL DEFAULT 'md',
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_popups_is_active ON popups (is_active);
`)
	})
	return s.schemaErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var size string
	if err := row.Scan(&r.ID, &r.Title, &r.Content, &r.LinkURL, &r.IsActive, &size); err != nil {
		return Record{}, err
	}
	r.Styles.PopupSize = Size(size)
	return normalizeRecord(r), nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, link_url, is_active, popup_size
FROM popups WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT id, title, content, link_url, is_active, popup_size
FROM popups WHERE id = $1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	if rec.ID <= 0 {
		return fmt.Errorf("popup id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	n := normalizeRecord(rec)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO popups (id, title, content, link_url, is_active, popup_size, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (id)
DO UPDATE SET title=EXCLUDED.title,
  content=EXCLUDED.content,
  link_url=EXCLUDED.link_url,
  is_active=EXCLUDED.is_active,
  popup_size=EXCLUDED.popup_size,
  updated_at=EXCLUDED.updated_at`,
		n.ID, n.Title, n.Content, n.LinkURL, n.IsActive, string(n.Styles.PopupSize))
	return err
}

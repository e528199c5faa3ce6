package imagestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres opens a pgx-backed database handle for NewPostgresStore.
func OpenPostgres(dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	return sql.Open("pgx", dsn)
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS session_images (
    id SERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(session_id, name)
);
CREATE INDEX IF NOT EXISTS idx_session_images_session ON session_images(session_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, session, name string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if _, err := imageKey(session, name); err != nil {
		return err
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	size := int64(len(content))
	_, err := s.db.ExecContext(ctx, `
INSERT INTO session_images (session_id, name, content, size, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, name)
DO UPDATE SET content=EXCLUDED.content, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`, strings.TrimSpace(session), strings.TrimSpace(name), content, size, time.Now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, session, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if _, err := imageKey(session, name); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM session_images WHERE session_id=$1 AND name=$2`,
		strings.TrimSpace(session), strings.TrimSpace(name)).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return content, err
}

func (s *PostgresStore) List(ctx context.Context, session string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, fmt.Errorf("session is required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM session_images WHERE session_id=$1 ORDER BY name`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			continue
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *PostgresStore) Purge(ctx context.Context, session string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	session = strings.TrimSpace(session)
	if session == "" {
		return fmt.Errorf("session is required")
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_images WHERE session_id=$1`, session)
	return err
}

func (s *PostgresStore) GetURL(ctx context.Context, session, name string) (string, error) {
	// Content lives in the database as BLOBs; there is no external URL.
	return "", nil
}

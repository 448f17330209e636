package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo
)

// SQLiteStore is a SQLite-backed Large-Content Store: a single-file,
// durable backend for node file payloads that cross the inline threshold.
//
// The engine defaults to MemStore; a host that wants persistence passes a
// SQLiteStore through WithLargeContentStore. It needs zero external setup, WAL mode for
// concurrent reads, and safe to embed next to a desktop/CLI host process
// that wraps the in-browser engine for local development and testing.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if absent) a SQLite-backed store at path.
// Use ":memory:" for a process-local database that still exercises the
// real driver and schema (useful in tests that want SQL semantics without
// a file on disk).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: configure sqlite (%s): %w", pragma, err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS large_content (
			node_id INTEGER PRIMARY KEY,
			content BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, nodeID int64, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	const q = `
		INSERT INTO large_content (node_id, content, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(node_id) DO UPDATE SET content = excluded.content, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, nodeID, content); err != nil {
		return fmt.Errorf("%w: %v", ErrFull, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, nodeID int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM large_content WHERE node_id = ?`, nodeID).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return content, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM large_content WHERE node_id = ?`, nodeID)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT node_id FROM large_content`)
	if err != nil {
		return nil, fmt.Errorf("store: keys: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: keys scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM large_content`)
	if err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Large-Content Store, for embedders
// that run the engine host-side against a shared database rather than a
// single local file (spec §4.A is silent on backend choice beyond
// "persistent ordered key-value store... outliving a single session").
//
// DSN format: [username[:password]@][protocol[(address)]]/dbname[?params].
// Never hardcode credentials; read the DSN from the environment.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a MySQL-backed store and ensures its schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx := context.Background()
	const schema = `
		CREATE TABLE IF NOT EXISTS large_content (
			node_id BIGINT PRIMARY KEY,
			content LONGBLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Put(ctx context.Context, nodeID int64, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	const q = `
		INSERT INTO large_content (node_id, content) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE content = VALUES(content)`
	if _, err := s.db.ExecContext(ctx, q, nodeID, content); err != nil {
		return fmt.Errorf("%w: %v", ErrFull, err)
	}
	return nil
}

func (s *MySQLStore) Get(ctx context.Context, nodeID int64) ([]byte, error) {
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

func (s *MySQLStore) Delete(ctx context.Context, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM large_content WHERE node_id = ?`, nodeID)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

func (s *MySQLStore) Keys(ctx context.Context) ([]int64, error) {
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

func (s *MySQLStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM large_content`)
	if err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

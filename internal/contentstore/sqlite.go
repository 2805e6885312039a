package contentstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a content-addressed store backed by a local SQLite file.
// AddNode is idempotent: storing identical content returns the existing CID.
type SQLiteStore struct {
	mu        sync.RWMutex
	conn      *sql.DB
	path      string
	connected bool
}

// GlobalStorePath returns the path to the user-level store database.
func GlobalStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "noesis", "store.db")
}

// ProjectStorePath returns the path to a project-local store database.
func ProjectStorePath(projectRoot string) string {
	return filepath.Join(projectRoot, ".noesis", "store.db")
}

// NewSQLiteStore creates a store for the given database path.
// No connection is made until Connect.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Connect opens the database, enabling WAL mode and applying the schema.
// It creates parent directories if they don't exist. Idempotent.
func (s *SQLiteStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open store database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schemaBlocks); err != nil {
		conn.Close()
		return fmt.Errorf("apply store schema: %w", err)
	}

	s.conn = conn
	s.connected = true
	return nil
}

const schemaBlocks = `
CREATE TABLE IF NOT EXISTS blocks (
	cid TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS block_links (
	cid TEXT NOT NULL,
	seq INTEGER NOT NULL,
	target TEXT NOT NULL,
	PRIMARY KEY (cid, seq)
);
`

// IsConnectedToServer reports whether the store is usable.
func (s *SQLiteStore) IsConnectedToServer() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// AddNode stores a payload with links and returns its CID.
func (s *SQLiteStore) AddNode(ctx context.Context, data []byte, links []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	cid := ComputeCID(data, links)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO blocks (cid, data) VALUES (?, ?)", cid, data)
	if err != nil {
		tx.Rollback()
		return "", fmt.Errorf("insert block: %w", err)
	}

	// Links only need writing the first time the block appears.
	if n, _ := res.RowsAffected(); n > 0 {
		for i, target := range links {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO block_links (cid, seq, target) VALUES (?, ?, ?)", cid, i, target); err != nil {
				tx.Rollback()
				return "", fmt.Errorf("insert block link: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit block: %w", err)
	}
	return cid, nil
}

// GetNode retrieves a block by CID.
func (s *SQLiteStore) GetNode(ctx context.Context, cid string) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	var data []byte
	row := s.conn.QueryRowContext(ctx, "SELECT data FROM blocks WHERE cid = ?", cid)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read block: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx,
		"SELECT target FROM block_links WHERE cid = ? ORDER BY seq", cid)
	if err != nil {
		return nil, fmt.Errorf("read block links: %w", err)
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("scan block link: %w", err)
		}
		links = append(links, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block links: %w", err)
	}

	return &Block{CID: cid, Data: data, Links: links}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false
	return s.conn.Close()
}

// Path returns the store's database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Package memory is a small durable key/value store for session notes.
// Entries survive watcher restarts; the MCP tools and the memory CLI
// subcommands are the only writers.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("memory: entry not found")

// Entry is one stored note.
type Entry struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Tags      string    `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id         TEXT NOT NULL,
	key        TEXT NOT NULL PRIMARY KEY,
	value      TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_updated ON entries(updated_at);
`

// Store is a SQLite-backed entry store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the store location under the given state directory.
func DefaultPath(stateDir string) string {
	return filepath.Join(stateDir, "memory.db")
}

// Open creates or opens the store at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create memory directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	// modernc sqlite is in-process; a single connection avoids write
	// contention between the CLI and the MCP server.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init memory schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Write upserts an entry by key. The ID and creation time of an existing
// entry are preserved.
func (s *Store) Write(ctx context.Context, key, value, tags string) (*Entry, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("memory: empty key")
	}

	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, key, value, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		uuid.NewString(), key, value, tags, stamp, stamp)
	if err != nil {
		return nil, fmt.Errorf("write entry: %w", err)
	}
	return s.Read(ctx, key)
}

// Read returns the entry for key, or ErrNotFound.
func (s *Store) Read(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, value, tags, created_at, updated_at
		FROM entries WHERE key = ?`, key)
	return scanEntry(row)
}

// Search returns entries whose key, value, or tags contain the term,
// newest first.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, tags, created_at, updated_at
		FROM entries
		WHERE key LIKE ? OR value LIKE ? OR tags LIKE ?
		ORDER BY updated_at DESC
		LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, tags, created_at, updated_at
		FROM entries ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Delete removes the entry for key. Deleting a missing key returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune removes entries not updated within the given age and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var created, updated string
	err := row.Scan(&e.ID, &e.Key, &e.Value, &e.Tags, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

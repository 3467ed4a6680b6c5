package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hashdb/internal/storage"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned by Update when no entry exists for the path.
	ErrNotFound = errors.New("entry not found")

	// ErrAlgorithmMismatch is returned by CheckAlgorithm when the index was
	// built with a different digest than the one requested.
	ErrAlgorithmMismatch = errors.New("index was built with a different hash algorithm")
)

const algorithmKey = "algorithm"

// Store persists index entries inside a SQLite database.
type Store struct {
	db *sql.DB
}

// Open initializes (or reuses) a SQLite database at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer, strictly sequential. Pragmas below are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS entries (
        path TEXT PRIMARY KEY,
        hash TEXT NOT NULL,
        mod_time INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scan_state (
        root_path TEXT PRIMARY KEY,
        last_run INTEGER NOT NULL DEFAULT 0,
        files_hashed INTEGER NOT NULL DEFAULT 0,
        bytes_hashed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS index_meta (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_hash ON entries(hash);
`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Lookup retrieves the entry stored for path. The boolean is false when the
// path has never been indexed.
func (s *Store) Lookup(ctx context.Context, path string) (storage.Entry, bool, error) {
	var (
		hash    string
		modTime int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT hash, mod_time FROM entries WHERE path = ?`, path).Scan(&hash, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Entry{}, false, nil
	}
	if err != nil {
		return storage.Entry{}, false, fmt.Errorf("lookup entry %s: %w", path, err)
	}

	return storage.Entry{
		Path:    path,
		Hash:    hash,
		ModTime: time.Unix(0, modTime),
	}, true, nil
}

// Insert adds a new entry. It fails if the path is already indexed.
func (s *Store) Insert(ctx context.Context, entry storage.Entry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO entries(path, hash, mod_time) VALUES(?, ?, ?)`,
		entry.Path, entry.Hash, entry.ModTime.UnixNano())
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.Path, err)
	}
	return nil
}

// Update refreshes the hash and modification time of an existing entry.
func (s *Store) Update(ctx context.Context, entry storage.Entry) error {
	res, err := s.db.ExecContext(ctx, `UPDATE entries SET hash = ?, mod_time = ? WHERE path = ?`,
		entry.Hash, entry.ModTime.UnixNano(), entry.Path)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", entry.Path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entry %s: %w", entry.Path, err)
	}
	if n == 0 {
		return fmt.Errorf("update entry %s: %w", entry.Path, ErrNotFound)
	}
	return nil
}

// Upsert inserts or updates an entry.
func (s *Store) Upsert(ctx context.Context, entry storage.Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entries(path, hash, mod_time)
VALUES(?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
        hash=excluded.hash,
        mod_time=excluded.mod_time
`, entry.Path, entry.Hash, entry.ModTime.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", entry.Path, err)
	}
	return nil
}

// Delete removes an entry by its path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete entry %s: %w", path, err)
	}
	return nil
}

// Paths returns every indexed path in ascending order.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "list paths", `SELECT path FROM entries ORDER BY path`)
}

// DistinctHashes returns every hash present in the index.
func (s *Store) DistinctHashes(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "list hashes", `SELECT DISTINCT hash FROM entries ORDER BY hash`)
}

// PathsForHash returns the paths sharing hash in ascending order.
func (s *Store) PathsForHash(ctx context.Context, hash string) ([]string, error) {
	return s.queryStrings(ctx, "list paths for hash "+hash, `SELECT path FROM entries WHERE hash = ? ORDER BY path`, hash)
}

// Count returns the number of indexed entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// queryStrings drains a single-column result fully so that the connection is
// free for writes by the time the caller iterates.
func (s *Store) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if scanErr := rows.Scan(&v); scanErr != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, scanErr)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return values, nil
}

// ScanState retrieves the last known scan state for a root path.
func (s *Store) ScanState(ctx context.Context, root string) (storage.ScanState, error) {
	var (
		lastRun     int64
		filesHashed int64
		bytesHashed int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT last_run, files_hashed, bytes_hashed FROM scan_state WHERE root_path = ?
`, root).Scan(&lastRun, &filesHashed, &bytesHashed)

	if errors.Is(err, sql.ErrNoRows) {
		return storage.ScanState{RootPath: root}, nil
	}
	if err != nil {
		return storage.ScanState{}, fmt.Errorf("query scan state: %w", err)
	}

	state := storage.ScanState{
		RootPath:    root,
		FilesHashed: filesHashed,
		BytesHashed: bytesHashed,
	}
	if lastRun != 0 {
		state.LastRun = time.Unix(0, lastRun)
	}
	return state, nil
}

// UpdateScanState writes the bookkeeping of a finished run for a root path.
func (s *Store) UpdateScanState(ctx context.Context, state storage.ScanState) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO scan_state(root_path, last_run, files_hashed, bytes_hashed)
VALUES(?, ?, ?, ?)
ON CONFLICT(root_path) DO UPDATE SET
        last_run=excluded.last_run,
        files_hashed=excluded.files_hashed,
        bytes_hashed=excluded.bytes_hashed
`, state.RootPath, state.LastRun.UnixNano(), state.FilesHashed, state.BytesHashed)
	if err != nil {
		return fmt.Errorf("update scan state %s: %w", state.RootPath, err)
	}
	return nil
}

// Algorithm returns the name of the digest the index was built with, or ""
// for an index that has never recorded one.
func (s *Store) Algorithm(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, algorithmKey).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query index algorithm: %w", err)
	}
	return name, nil
}

// SetAlgorithm records the digest used to build the index.
func (s *Store) SetAlgorithm(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO index_meta(key, value) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value
`, algorithmKey, name)
	if err != nil {
		return fmt.Errorf("record index algorithm: %w", err)
	}
	return nil
}

// CheckAlgorithm records name for a fresh index and refuses an index built
// with another digest.
func (s *Store) CheckAlgorithm(ctx context.Context, name string) error {
	current, err := s.Algorithm(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		return s.SetAlgorithm(ctx, name)
	}
	if current != name {
		return fmt.Errorf("%w: %s, requested %s", ErrAlgorithmMismatch, current, name)
	}
	return nil
}

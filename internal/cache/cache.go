// Package cache is a SQLite-backed content cache of resolved component
// packages, keyed by a Reference's display string. It caches package
// bytes and metadata only — never execution state (Snapshot, RunMetadata)
// — so it stays outside the §1 Non-goal "no persistence layer for
// execution history." Adapted from pkg/fleet/store_sqlite.go's
// migrate-on-open, typed-CRUD shape, narrowed from fleet's
// nodes/executions/locks tables to a single resolved-components table.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGo
)

// Entry is one cached component package: the bytes the loader would
// otherwise re-fetch or re-read, and the content hash recorded
// alongside it. Get returns the stored hash as-is; it does not re-hash
// the bytes to verify them.
type Entry struct {
	Reference string
	Bytes     []byte
	Hash      string
	CachedAt  time.Time
}

// Store is a SQLite-backed cache of resolved component packages.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at dbPath. Use
// ":memory:" for an in-process, non-persistent cache (tests).
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: set WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS components (
		reference TEXT PRIMARY KEY,
		bytes BLOB NOT NULL,
		hash TEXT NOT NULL,
		cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores data under reference, recording its content hash (the
// plain SHA-256 of the raw bytes computed by Hash in this package).
func (s *Store) Put(_ context.Context, reference string, data []byte) error {
	hash := Hash(data)
	_, err := s.db.Exec(`
		INSERT INTO components (reference, bytes, hash, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(reference) DO UPDATE SET
			bytes=excluded.bytes, hash=excluded.hash, cached_at=excluded.cached_at
	`, reference, data, hash, time.Now().UTC())
	return err
}

// Get returns the cached entry for reference, or (Entry{}, false, nil)
// if it isn't cached.
func (s *Store) Get(_ context.Context, reference string) (Entry, bool, error) {
	var e Entry
	var cachedAt time.Time
	err := s.db.QueryRow(`SELECT reference, bytes, hash, cached_at FROM components WHERE reference = ?`, reference).
		Scan(&e.Reference, &e.Bytes, &e.Hash, &cachedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	e.CachedAt = cachedAt
	return e, true, nil
}

// Evict removes reference from the cache, if present.
func (s *Store) Evict(_ context.Context, reference string) error {
	_, err := s.db.Exec("DELETE FROM components WHERE reference = ?", reference)
	return err
}

// Hash computes a plain SHA-256 hex digest of data. Unlike
// pkg/execstate.ComputeMetadata, this hashes raw package bytes (tar
// archives, single files) with no JSON canonicalization — there's no
// JSON structure to normalize for an opaque component package.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

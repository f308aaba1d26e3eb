// Package cache stores completed research bundles in SQLite so repeating a
// query inside the TTL skips every network call.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"last30days/research"
)

// DefaultTTL is how long a cached bundle stays valid.
const DefaultTTL = 60 * time.Minute

const dbFileName = "cache.db"

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS bundles (
	key TEXT PRIMARY KEY,
	bundle TEXT NOT NULL,
	stored_at INTEGER NOT NULL
);
`

// DBPath returns the cache database path inside dir.
func DBPath(dir string) string {
	return filepath.Join(dir, dbFileName)
}

// Store provides SQLite-backed bundle caching.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// New opens the cache database at dbPath, creates the schema if it doesn't
// exist, and returns a Store. A non-positive ttl falls back to DefaultTTL.
func New(dbPath string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create tables: %w", err)
	}

	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the cache key for a run: a 16-character hex digest over the
// topic identity, the window dates, the depth, and the usable source set.
// Emission mode is not part of the key; the cached object is always the
// full bundle and shaping happens at emit time.
func Key(topic research.Topic, sources []research.Platform) string {
	names := make([]string, len(sources))
	for i, source := range sources {
		names[i] = string(source)
	}
	seed := strings.Join([]string{
		strings.ToLower(topic.Subject),
		strings.ToLower(topic.ToolHint),
		string(topic.Intent),
		topic.FromDate(),
		topic.ToDate(),
		string(topic.Depth),
		strings.Join(names, ","),
	}, "|")
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached bundle under key when present and still fresh at
// now. A miss or an expired entry returns nil without error.
func (s *Store) Get(key string, now time.Time) (*research.Bundle, error) {
	var (
		payload  string
		storedAt int64
	)
	err := s.db.QueryRow(
		`SELECT bundle, stored_at FROM bundles WHERE key = ?`, key,
	).Scan(&payload, &storedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get bundle %q: %w", key, err)
	}

	if now.Sub(time.Unix(storedAt, 0)) > s.ttl {
		return nil, nil
	}

	var bundle research.Bundle
	if err := json.Unmarshal([]byte(payload), &bundle); err != nil {
		return nil, fmt.Errorf("cache: decode bundle %q: %w", key, err)
	}
	return &bundle, nil
}

// Put stores the bundle under key, replacing any prior entry including
// expired ones.
func (s *Store) Put(key string, bundle *research.Bundle, now time.Time) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("cache: encode bundle %q: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO bundles (key, bundle, stored_at) VALUES (?, ?, ?)`,
		key, string(payload), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: store bundle %q: %w", key, err)
	}
	return nil
}

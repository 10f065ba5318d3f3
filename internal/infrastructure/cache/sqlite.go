// Package cache stores successful generations keyed by backend, model and
// normalized query text, so repeated questions skip the network round trip.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/ports"
)

// Store is the SQLite-backed generation cache.
type Store struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
	mu         sync.Mutex
}

// NewStore opens (or creates) the cache database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	store := &Store{
		db:         db,
		ttl:        domain.DefaultCacheTTL,
		maxEntries: domain.DefaultMaxCacheEntries,
	}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return store, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS generations (
		key TEXT PRIMARY KEY,
		backend TEXT,
		model TEXT,
		query TEXT,
		command TEXT,
		created_at INTEGER
	);`)
	return err
}

// Get returns the cached command for the query. Rows older than the TTL are
// removed on read and reported as a miss.
func (s *Store) Get(backend domain.BackendID, model, query string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cacheKey(backend, model, query)
	var command string
	var createdAt int64
	err := s.db.QueryRow("SELECT command, created_at FROM generations WHERE key = ?", key).
		Scan(&command, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if time.Since(time.Unix(createdAt, 0)) > s.ttl {
		_, _ = s.db.Exec("DELETE FROM generations WHERE key = ?", key)
		return "", false, nil
	}
	return command, true, nil
}

// Put stores a command, evicting the oldest rows once the table is full.
func (s *Store) Put(backend domain.BackendID, model, query, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO generations
		(key, backend, model, query, command, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cacheKey(backend, model, query),
		string(backend), model, normalizeQuery(query), command,
		time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	return s.evictOldest()
}

func (s *Store) evictOldest() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM generations").Scan(&count); err != nil {
		return err
	}
	if count <= s.maxEntries {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM generations WHERE key IN (
		SELECT key FROM generations ORDER BY created_at ASC LIMIT ?)`,
		count-s.maxEntries,
	)
	return err
}

// Clear deletes every cached generation.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM generations")
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func cacheKey(backend domain.BackendID, model, query string) string {
	sum := sha256.Sum256([]byte(string(backend) + "|" + model + "|" + normalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}

// normalizeQuery lowercases and collapses whitespace so trivially restated
// questions share a cache row.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

var _ ports.CacheStore = (*Store)(nil)

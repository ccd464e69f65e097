package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/regionweather/internal/models"
)

// cacheKey is the fixed storage key the whole cache map lives under.
const cacheKey = "weather_cache_v1"

// Store persists the weather cache as a single JSON blob in SQLite. In-memory
// state stays authoritative: callers log and ignore errors from Save.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load reads the persisted cache map. A missing blob or an undecodable blob
// yields an empty map, never an error the caller must act on.
func (s *Store) Load() (map[string]models.CacheEntry, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT value FROM cache_blobs WHERE key = ?`, cacheKey).Scan(&blob)
	if err == sql.ErrNoRows {
		return map[string]models.CacheEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cache blob: %w", err)
	}

	entries := map[string]models.CacheEntry{}
	if err := json.Unmarshal(blob, &entries); err != nil {
		// A corrupt blob is treated as empty rather than fatal.
		return map[string]models.CacheEntry{}, nil
	}
	return entries, nil
}

// Save rewrites the whole cache map under the fixed key.
func (s *Store) Save(entries map[string]models.CacheEntry) error {
	blob, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cache blob: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO cache_blobs (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, cacheKey, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save cache blob: %w", err)
	}
	return nil
}

// Clear removes the durable copy of the cache.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM cache_blobs WHERE key = ?`, cacheKey)
	if err != nil {
		return fmt.Errorf("clear cache blob: %w", err)
	}
	return nil
}

// Stats describes the durable cache copy for the settings surface.
type Stats struct {
	EntryCount int
	SizeBytes  int64
	SavedAt    time.Time
}

// GetStats returns size and age of the persisted blob. A missing blob returns
// zero stats and no error.
func (s *Store) GetStats() (*Stats, error) {
	var blob []byte
	var savedAt sql.NullTime
	err := s.db.QueryRow(`SELECT value, updated_at FROM cache_blobs WHERE key = ?`, cacheKey).
		Scan(&blob, &savedAt)
	if err == sql.ErrNoRows {
		return &Stats{}, nil
	}
	if err != nil {
		return nil, err
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(blob, &entries); err != nil {
		return &Stats{SizeBytes: int64(len(blob))}, nil
	}

	stats := &Stats{
		EntryCount: len(entries),
		SizeBytes:  int64(len(blob)),
	}
	if savedAt.Valid {
		stats.SavedAt = savedAt.Time
	}
	return stats, nil
}

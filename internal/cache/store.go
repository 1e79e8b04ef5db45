package cache

import (
	"time"

	"github.com/ricirt/plexnotify/internal/domain"
)

// Entry is one cached catalog snapshot. Owned exclusively by the cache;
// callers always receive copies of the item slice, never the entry.
type Entry struct {
	Items    []domain.MediaItem `json:"items"`
	StoredAt time.Time          `json:"storedAt"`
}

// Store is the durable engine behind the in-memory cache. Implemented
// by FileStore (JSON document) and BoltStore (embedded KV); the cache
// and scheduler never know which one they are talking to.
type Store interface {
	// Save rewrites the whole stream→entry mapping atomically.
	Save(snapshot map[domain.Stream]Entry) error
	// Load reads the mapping back. A missing store yields an empty
	// map and no error; corruption is an error the caller may treat
	// as best-effort.
	Load() (map[domain.Stream]Entry, error)
	Close() error
}

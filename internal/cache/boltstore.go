package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/ricirt/plexnotify/internal/domain"
)

var catalogBucket = []byte("catalog")

// BoltStore is the embedded-KV alternative to FileStore, selected with
// CACHE_BACKEND=bolt. Entries are stored one key per stream so a large
// movie catalog does not force a rewrite of the series entry.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "cache.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(catalogBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(snapshot map[domain.Stream]Entry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(catalogBucket)
		for stream, entry := range snapshot {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", stream, err)
			}
			if err := b.Put([]byte(stream), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

func (s *BoltStore) Load() (map[domain.Stream]Entry, error) {
	snapshot := map[domain.Stream]Entry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(catalogBucket).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode entry %s: %w", k, err)
			}
			snapshot[domain.Stream(k)] = entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// compile-time check that BoltStore implements Store
var _ Store = (*BoltStore)(nil)

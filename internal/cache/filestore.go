package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ricirt/plexnotify/internal/domain"
)

// FileStore persists the cache as a single JSON document mapping
// catalog key to items + storedAt. Writes go through a temp file and
// an atomic rename so a crash mid-write can never leave a torn file.
type FileStore struct {
	path string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, "cache.json")}, nil
}

func (s *FileStore) Save(snapshot map[domain.Stream]Entry) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal cache: %v", domain.ErrPersistFailed, err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistFailed, s.path, err)
	}
	return nil
}

func (s *FileStore) Load() (map[domain.Stream]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[domain.Stream]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var snapshot map[domain.Stream]Entry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if snapshot == nil {
		snapshot = map[domain.Stream]Entry{}
	}
	return snapshot, nil
}

func (s *FileStore) Close() error { return nil }

// compile-time check that FileStore implements Store
var _ Store = (*FileStore)(nil)

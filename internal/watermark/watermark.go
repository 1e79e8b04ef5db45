// Package watermark persists the per-stream last-notified position so
// a restart neither re-announces nor skips items.
package watermark

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/ricirt/plexnotify/internal/domain"
)

// Store holds one watermark per stream, each persisted as its own small
// JSON file ({"lastNotifiedAddedAt": N}). Advancement is monotonic; a
// write that would move a watermark backward is refused.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	marks map[domain.Stream]domain.Watermark
}

func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watermark dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger,
		marks:  make(map[domain.Stream]domain.Watermark),
	}, nil
}

func (s *Store) path(stream domain.Stream) string {
	return filepath.Join(s.dir, fmt.Sprintf("watermark-%s.json", stream))
}

// Load reads every stream's watermark at process start. Best-effort: a
// missing file means "never notified" (zero watermark), a corrupt one
// is logged and treated the same.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stream := range domain.Streams {
		data, err := os.ReadFile(s.path(stream))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.Warn("watermark read failed, starting at zero",
				zap.String("stream", string(stream)), zap.Error(err))
			continue
		}

		var w domain.Watermark
		if err := json.Unmarshal(data, &w); err != nil {
			s.logger.Warn("watermark file corrupt, starting at zero",
				zap.String("stream", string(stream)), zap.Error(err))
			continue
		}
		s.marks[stream] = w
	}
}

// Get returns the current watermark for the stream (zero if none yet).
func (s *Store) Get(stream domain.Stream) domain.Watermark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[stream]
}

// Advance moves the stream's watermark forward and persists it.
// A candidate at or below the current value is ignored: the watermark
// is monotonically non-decreasing by contract.
func (s *Store) Advance(stream domain.Stream, w domain.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.marks[stream]
	if w.LastNotifiedAddedAt <= current.LastNotifiedAddedAt {
		return nil
	}
	s.marks[stream] = w

	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("%w: marshal watermark: %v", domain.ErrPersistFailed, err)
	}
	if err := renameio.WriteFile(s.path(stream), data, 0o644); err != nil {
		// In-memory state stays authoritative; the next advance retries.
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistFailed, s.path(stream), err)
	}
	return nil
}

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ricirt/plexnotify/internal/domain"
	"github.com/ricirt/plexnotify/internal/source"
)

// MetricHooks carries the metric callbacks injected by main.
// Using a struct keeps the cache constructor signature clean; nil
// hooks are replaced with no-ops.
type MetricHooks struct {
	OnHit   func(stream domain.Stream)
	OnMiss  func(stream domain.Stream)
	OnFetch func(stream domain.Stream, ok bool, latency time.Duration)
}

func (h *MetricHooks) normalize() {
	if h.OnHit == nil {
		h.OnHit = func(domain.Stream) {}
	}
	if h.OnMiss == nil {
		h.OnMiss = func(domain.Stream) {}
	}
	if h.OnFetch == nil {
		h.OnFetch = func(domain.Stream, bool, time.Duration) {}
	}
}

// Cache is the authority on what we currently believe the catalog
// contains. It owns the in-memory stream→entry map, refreshes entries
// from the source, and persists through a Store. Concurrent refreshes
// of the same stream are coalesced into a single upstream fetch.
type Cache struct {
	src    source.Source
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	hooks  MetricHooks

	group singleflight.Group

	mu      sync.RWMutex
	entries map[domain.Stream]Entry
}

func New(src source.Source, store Store, ttl time.Duration, logger *zap.Logger, hooks MetricHooks) *Cache {
	hooks.normalize()
	return &Cache{
		src:     src,
		store:   store,
		ttl:     ttl,
		logger:  logger,
		hooks:   hooks,
		entries: make(map[domain.Stream]Entry),
	}
}

// Get returns the cached catalog if present and unexpired, otherwise
// ErrCacheMiss. It never reaches upstream.
func (c *Cache) Get(stream domain.Stream) ([]domain.MediaItem, error) {
	c.mu.RLock()
	entry, ok := c.entries[stream]
	c.mu.RUnlock()

	if !ok || time.Since(entry.StoredAt) > c.ttl {
		c.hooks.OnMiss(stream)
		return nil, domain.ErrCacheMiss
	}
	c.hooks.OnHit(stream)
	return copyItems(entry.Items), nil
}

// StoredAt reports when the stream's entry was last refreshed.
func (c *Cache) StoredAt(stream domain.Stream) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[stream]
	return entry.StoredAt, ok
}

// Refresh repopulates the entry from the source unconditionally.
// On failure the existing (possibly stale) entry is left untouched and
// the error propagates; the caller decides whether to tolerate
// staleness. Concurrent refreshes of the same stream share one fetch.
func (c *Cache) Refresh(ctx context.Context, stream domain.Stream) ([]domain.MediaItem, error) {
	return c.fetch(ctx, stream)
}

// GetOrRefresh returns the cached catalog if fresh, otherwise fetches.
// The singleflight group guarantees that N concurrent callers hitting
// an expired entry trigger exactly one upstream request.
func (c *Cache) GetOrRefresh(ctx context.Context, stream domain.Stream) ([]domain.MediaItem, error) {
	if items, err := c.Get(stream); err == nil {
		return items, nil
	}
	return c.fetch(ctx, stream)
}

func (c *Cache) fetch(ctx context.Context, stream domain.Stream) ([]domain.MediaItem, error) {
	v, err, shared := c.group.Do(string(stream), func() (any, error) {
		start := time.Now()
		items, err := c.src.FetchCatalog(ctx, stream)
		c.hooks.OnFetch(stream, err == nil, time.Since(start))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[stream] = Entry{Items: items, StoredAt: time.Now()}
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("coalesced concurrent refresh", zap.String("stream", string(stream)))
	}
	return copyItems(v.([]domain.MediaItem)), nil
}

// Invalidate drops the entry so the next Get misses regardless of TTL.
func (c *Cache) Invalidate(stream domain.Stream) {
	c.mu.Lock()
	delete(c.entries, stream)
	c.mu.Unlock()
	c.logger.Info("cache entry invalidated", zap.String("stream", string(stream)))
}

// Persist writes the full in-memory mapping through the store.
func (c *Cache) Persist() error {
	c.mu.RLock()
	snapshot := make(map[domain.Stream]Entry, len(c.entries))
	for stream, entry := range c.entries {
		snapshot[stream] = Entry{Items: copyItems(entry.Items), StoredAt: entry.StoredAt}
	}
	c.mu.RUnlock()

	if err := c.store.Save(snapshot); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// Load restores entries from the store. Best-effort: a missing or
// corrupt store leaves the cache empty and only logs, so a bad file on
// disk can never stop the process from starting.
func (c *Cache) Load() {
	snapshot, err := c.store.Load()
	if err != nil {
		c.logger.Warn("cache load failed, starting empty", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.entries = snapshot
	c.mu.Unlock()

	for stream, entry := range snapshot {
		c.logger.Info("cache entry restored",
			zap.String("stream", string(stream)),
			zap.Int("items", len(entry.Items)),
			zap.Time("stored_at", entry.StoredAt),
		)
	}
}

func copyItems(items []domain.MediaItem) []domain.MediaItem {
	out := make([]domain.MediaItem, len(items))
	copy(out, items)
	return out
}

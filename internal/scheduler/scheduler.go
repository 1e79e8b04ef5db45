// Package scheduler drives the periodic cache refreshes and
// change-check cycles.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricirt/plexnotify/internal/cache"
	"github.com/ricirt/plexnotify/internal/detect"
	"github.com/ricirt/plexnotify/internal/dispatch"
	"github.com/ricirt/plexnotify/internal/domain"
	"github.com/ricirt/plexnotify/internal/ledger"
	"github.com/ricirt/plexnotify/internal/subscriber"
	"github.com/ricirt/plexnotify/internal/watermark"
)

// CycleState tracks where a stream's change-check cycle currently is.
type CycleState string

const (
	StateIdle        CycleState = "idle"
	StateFetching    CycleState = "fetching"
	StateDetecting   CycleState = "detecting"
	StateDispatching CycleState = "dispatching"
	StatePersisting  CycleState = "persisting"
)

// MetricHooks carries the metric callbacks injected by main.
type MetricHooks struct {
	OnCycle    func(stream domain.Stream, latency time.Duration)
	OnCycleErr func(stream domain.Stream)
	OnTickSkip func(loop string)
}

func (h *MetricHooks) normalize() {
	if h.OnCycle == nil {
		h.OnCycle = func(domain.Stream, time.Duration) {}
	}
	if h.OnCycleErr == nil {
		h.OnCycleErr = func(domain.Stream) {}
	}
	if h.OnTickSkip == nil {
		h.OnTickSkip = func(string) {}
	}
}

// StreamStatus is the operational snapshot served by the status API.
type StreamStatus struct {
	State      CycleState             `json:"state"`
	Watermark  domain.Watermark       `json:"watermark"`
	CachedAt   *time.Time             `json:"cached_at,omitempty"`
	LastReport *domain.DispatchReport `json:"last_report,omitempty"`
}

// Scheduler owns the two background loops: the hourly catalog refresh
// and the minutely change-check cycle. All cache and watermark
// mutations happen inside these cycles (or API-triggered refreshes
// that share the cache's coalescing), never concurrently for the same
// stream.
type Scheduler struct {
	cache       *cache.Cache
	marks       *watermark.Store
	directory   *subscriber.Directory
	dispatcher  *dispatch.Dispatcher
	ledger      ledger.Store
	retryFailed bool

	refreshInterval time.Duration
	checkInterval   time.Duration

	logger *zap.Logger
	hooks  MetricHooks

	// Reentrancy guards: a tick that fires while the previous cycle is
	// still running is skipped, not queued.
	refreshMu sync.Mutex
	checkMu   sync.Mutex

	mu          sync.RWMutex
	states      map[domain.Stream]CycleState
	lastReports map[domain.Stream]*domain.DispatchReport
}

func New(
	c *cache.Cache,
	marks *watermark.Store,
	directory *subscriber.Directory,
	dispatcher *dispatch.Dispatcher,
	ledg ledger.Store,
	retryFailed bool,
	refreshInterval, checkInterval time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Scheduler {
	hooks.normalize()
	states := make(map[domain.Stream]CycleState, len(domain.Streams))
	for _, stream := range domain.Streams {
		states[stream] = StateIdle
	}
	return &Scheduler{
		cache:           c,
		marks:           marks,
		directory:       directory,
		dispatcher:      dispatcher,
		ledger:          ledg,
		retryFailed:     retryFailed,
		refreshInterval: refreshInterval,
		checkInterval:   checkInterval,
		logger:          logger,
		hooks:           hooks,
		states:          states,
		lastReports:     make(map[domain.Stream]*domain.DispatchReport),
	}
}

// RunRefresh ticks every refresh interval, repopulating and persisting
// every catalog stream. Stops cleanly when ctx is cancelled.
func (s *Scheduler) RunRefresh(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	s.logger.Info("refresh loop started", zap.Duration("interval", s.refreshInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh loop stopping")
			return
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// RunCheck runs one change-check immediately at startup (the catalog
// may have grown while the process was down), then ticks every check
// interval. Stops cleanly when ctx is cancelled.
func (s *Scheduler) RunCheck(ctx context.Context) {
	s.logger.Info("check loop started", zap.Duration("interval", s.checkInterval))

	s.CheckOnce(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("check loop stopping")
			return
		case <-ticker.C:
			s.CheckOnce(ctx)
		}
	}
}

// RefreshAll refreshes every stream (streams refresh concurrently with
// each other) and persists the cache. Reentrancy-guarded.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	if !s.refreshMu.TryLock() {
		s.hooks.OnTickSkip("refresh")
		s.logger.Warn("previous refresh still running, skipping tick")
		return
	}
	defer s.refreshMu.Unlock()

	var wg sync.WaitGroup
	for _, stream := range domain.Streams {
		wg.Add(1)
		go func(stream domain.Stream) {
			defer wg.Done()
			if _, err := s.cache.Refresh(ctx, stream); err != nil {
				// Stale entry is preserved; next tick tries again.
				s.logger.Error("catalog refresh failed",
					zap.String("stream", string(stream)), zap.Error(err))
			}
		}(stream)
	}
	wg.Wait()

	if err := s.cache.Persist(); err != nil {
		s.logger.Error("cache persist failed", zap.Error(err))
	}
}

// CheckOnce runs one change-check cycle over all streams.
// Reentrancy-guarded: if the previous cycle is still running the tick
// is skipped so slow upstream calls can never pile up concurrent
// fetches.
func (s *Scheduler) CheckOnce(ctx context.Context) {
	if !s.checkMu.TryLock() {
		s.hooks.OnTickSkip("check")
		s.logger.Warn("previous check cycle still running, skipping tick")
		return
	}
	defer s.checkMu.Unlock()

	// Every log line of one cycle shares a cycle ID so interleaved
	// cycles can be told apart.
	log := s.logger.With(zap.String("cycle_id", uuid.NewString()))

	// The directory is reloaded once per cycle so external edits to
	// the profile store take effect without a restart.
	subs, err := s.directory.Load()
	if err != nil {
		log.Error("subscriber directory load failed", zap.Error(err))
		return
	}

	for _, stream := range domain.Streams {
		s.checkStream(ctx, log, stream, subs)
	}
}

// checkStream walks one stream through
// FETCHING → DETECTING → DISPATCHING → PERSISTING → IDLE.
// A fetch error returns straight to IDLE with nothing mutated.
// Dispatch failures are absorbed per recipient and never block the
// watermark from advancing.
func (s *Scheduler) checkStream(ctx context.Context, log *zap.Logger, stream domain.Stream, subs []domain.Subscriber) {
	start := time.Now()
	defer s.setState(stream, StateIdle)

	s.setState(stream, StateFetching)
	items, err := s.cache.GetOrRefresh(ctx, stream)
	if err != nil {
		s.hooks.OnCycleErr(stream)
		log.Error("check cycle fetch failed",
			zap.String("stream", string(stream)), zap.Error(err))
		return
	}

	s.setState(stream, StateDetecting)
	mark := s.marks.Get(stream)
	fresh := detect.DetectNew(items, mark)

	s.setState(stream, StateDispatching)
	if s.retryFailed {
		// The backlog from earlier cycles is drained first, before this
		// cycle's dispatch records any new failures.
		s.retryPending(ctx, log, stream, subs)
	}
	if len(fresh) > 0 {
		log.Info("new items detected",
			zap.String("stream", string(stream)),
			zap.Int("count", len(fresh)),
			zap.Int64("watermark", mark.LastNotifiedAddedAt),
		)
		report := s.dispatcher.Dispatch(ctx, stream, fresh, subs, time.Now())
		s.setLastReport(stream, &report)
	}

	s.setState(stream, StatePersisting)
	next, moved := detect.Advance(mark, fresh)
	if len(fresh) > 0 && !moved {
		// Upstream handed us "new" items older than the watermark;
		// log it and leave the watermark alone.
		log.Warn("upstream returned items older than watermark, not advancing",
			zap.String("stream", string(stream)),
			zap.Int64("watermark", mark.LastNotifiedAddedAt),
		)
	}
	if moved {
		if err := s.marks.Advance(stream, next); err != nil {
			log.Error("watermark persist failed",
				zap.String("stream", string(stream)), zap.Error(err))
		}
	}

	s.hooks.OnCycle(stream, time.Since(start))
}

// retryPending re-attempts deliveries that failed on earlier cycles.
func (s *Scheduler) retryPending(ctx context.Context, log *zap.Logger, stream domain.Stream, subs []domain.Subscriber) {
	pending, err := s.ledger.FindRetryable(ctx, stream)
	if err != nil {
		log.Error("retryable lookup failed",
			zap.String("stream", string(stream)), zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}
	log.Info("retrying failed deliveries",
		zap.String("stream", string(stream)), zap.Int("count", len(pending)))
	s.dispatcher.Retry(ctx, stream, pending, subs, time.Now())
}

// RefreshNow serves API-triggered refreshes: repopulate one stream and
// persist. Shares the cache's in-flight coalescing with the loops.
func (s *Scheduler) RefreshNow(ctx context.Context, stream domain.Stream) error {
	if _, err := s.cache.Refresh(ctx, stream); err != nil {
		return err
	}
	return s.cache.Persist()
}

// Status returns the operational snapshot for every stream.
func (s *Scheduler) Status() map[domain.Stream]StreamStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Stream]StreamStatus, len(domain.Streams))
	for _, stream := range domain.Streams {
		st := StreamStatus{
			State:      s.states[stream],
			Watermark:  s.marks.Get(stream),
			LastReport: s.lastReports[stream],
		}
		if at, ok := s.cache.StoredAt(stream); ok {
			st.CachedAt = &at
		}
		out[stream] = st
	}
	return out
}

func (s *Scheduler) setState(stream domain.Stream, state CycleState) {
	s.mu.Lock()
	s.states[stream] = state
	s.mu.Unlock()
}

func (s *Scheduler) setLastReport(stream domain.Stream, report *domain.DispatchReport) {
	s.mu.Lock()
	s.lastReports[stream] = report
	s.mu.Unlock()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricirt/plexnotify/internal/cache"
	"github.com/ricirt/plexnotify/internal/dispatch"
	"github.com/ricirt/plexnotify/internal/domain"
	"github.com/ricirt/plexnotify/internal/scheduler"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	NotificationsSent    *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	NotificationsSkipped *prometheus.CounterVec

	CycleDuration *prometheus.HistogramVec
	CycleErrors   *prometheus.CounterVec
	TicksSkipped  *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of catalog reads served from the cache.",
		}, []string{"stream"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of catalog reads that found no fresh entry.",
		}, []string{"stream"}),

		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_fetches_total",
			Help: "Total number of upstream catalog fetches, by outcome.",
		}, []string{"stream", "outcome"}),

		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_fetch_seconds",
			Help:    "Duration of upstream catalog fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stream"}),

		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of successfully delivered announcements.",
		}, []string{"stream"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of failed announcement deliveries.",
		}, []string{"stream"}),

		NotificationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_skipped_total",
			Help: "Total number of subscribers skipped for quiet hours or disabled notifications.",
		}, []string{"stream"}),

		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "check_cycle_seconds",
			Help:    "Duration of one change-check cycle, fetch to watermark persist.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stream"}),

		CycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "check_cycle_errors_total",
			Help: "Total number of change-check cycles aborted by a fetch error.",
		}, []string{"stream"}),

		TicksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticks_skipped_total",
			Help: "Total number of loop ticks skipped because the previous run was still in flight.",
		}, []string{"loop"}),
	}

	reg.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.Fetches,
		m.FetchDuration,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.NotificationsSkipped,
		m.CycleDuration,
		m.CycleErrors,
		m.TicksSkipped,
	)

	return m
}

// CacheHooks returns the metric callbacks expected by cache.MetricHooks.
// Centralises the prometheus observation calls so cache.go stays import-free.
func (m *Metrics) CacheHooks() cache.MetricHooks {
	return cache.MetricHooks{
		OnHit: func(stream domain.Stream) {
			m.CacheHits.WithLabelValues(string(stream)).Inc()
		},
		OnMiss: func(stream domain.Stream) {
			m.CacheMisses.WithLabelValues(string(stream)).Inc()
		},
		OnFetch: func(stream domain.Stream, ok bool, latency time.Duration) {
			outcome := "success"
			if !ok {
				outcome = "error"
			}
			m.Fetches.WithLabelValues(string(stream), outcome).Inc()
			m.FetchDuration.WithLabelValues(string(stream)).Observe(latency.Seconds())
		},
	}
}

// DispatchHooks returns the metric callbacks expected by dispatch.MetricHooks.
func (m *Metrics) DispatchHooks() dispatch.MetricHooks {
	return dispatch.MetricHooks{
		OnSent: func(stream domain.Stream) {
			m.NotificationsSent.WithLabelValues(string(stream)).Inc()
		},
		OnFailed: func(stream domain.Stream) {
			m.NotificationsFailed.WithLabelValues(string(stream)).Inc()
		},
		OnSkipped: func(stream domain.Stream) {
			m.NotificationsSkipped.WithLabelValues(string(stream)).Inc()
		},
	}
}

// SchedulerHooks returns the metric callbacks expected by scheduler.MetricHooks.
func (m *Metrics) SchedulerHooks() scheduler.MetricHooks {
	return scheduler.MetricHooks{
		OnCycle: func(stream domain.Stream, latency time.Duration) {
			m.CycleDuration.WithLabelValues(string(stream)).Observe(latency.Seconds())
		},
		OnCycleErr: func(stream domain.Stream) {
			m.CycleErrors.WithLabelValues(string(stream)).Inc()
		},
		OnTickSkip: func(loop string) {
			m.TicksSkipped.WithLabelValues(loop).Inc()
		},
	}
}

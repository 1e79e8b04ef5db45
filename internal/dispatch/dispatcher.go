// Package dispatch fans one batch of new items out to all eligible
// subscribers, isolating per-recipient failures.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ricirt/plexnotify/internal/domain"
	"github.com/ricirt/plexnotify/internal/ledger"
	"github.com/ricirt/plexnotify/internal/notify"
)

// MetricHooks carries the metric callbacks injected by main.
type MetricHooks struct {
	OnSent    func(stream domain.Stream)
	OnFailed  func(stream domain.Stream)
	OnSkipped func(stream domain.Stream)
}

func (h *MetricHooks) normalize() {
	if h.OnSent == nil {
		h.OnSent = func(domain.Stream) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.Stream) {}
	}
	if h.OnSkipped == nil {
		h.OnSkipped = func(domain.Stream) {}
	}
}

// Dispatcher delivers announcements through a Notifier and records
// every outcome in the ledger. Distinct subscribers are handled
// concurrently (bounded); the items for one subscriber are sent in
// order, exactly once per cycle.
type Dispatcher struct {
	notifier    notify.Notifier
	ledger      ledger.Store
	concurrency int
	logger      *zap.Logger
	hooks       MetricHooks
}

func New(notifier notify.Notifier, ledg ledger.Store, concurrency int, logger *zap.Logger, hooks MetricHooks) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	hooks.normalize()
	return &Dispatcher{
		notifier:    notifier,
		ledger:      ledg,
		concurrency: concurrency,
		logger:      logger,
		hooks:       hooks,
	}
}

// Dispatch sends every item to every eligible subscriber. One
// subscriber failing never aborts delivery to the others; the outcome
// of each send lands in the report and the ledger. There is no retry
// within a cycle.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	stream domain.Stream,
	items []domain.MediaItem,
	subs []domain.Subscriber,
	now time.Time,
) domain.DispatchReport {
	report := domain.DispatchReport{Stream: stream, Items: len(items), At: now}
	if len(items) == 0 {
		return report
	}

	var eligible []domain.Subscriber
	for _, sub := range subs {
		if !sub.Eligible(now) {
			report.Skipped = append(report.Skipped, sub.ChatID)
			d.hooks.OnSkipped(stream)
			continue
		}
		eligible = append(eligible, sub)
	}

	var (
		mu         sync.Mutex
		deliveries []domain.Delivery
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, sub := range eligible {
		sub := sub
		g.Go(func() error {
			var firstErr error
			for _, item := range items {
				delivery := domain.Delivery{
					Stream:    stream,
					ItemID:    item.ID,
					ItemTitle: item.Title,
					ChatID:    sub.ChatID,
					Text:      notify.Render(item),
					PhotoRef:  item.ThumbnailRef,
					Delivered: true,
					CreatedAt: now,
				}

				if err := d.notifier.Send(gctx, sub.ChatID, delivery.Text, delivery.PhotoRef); err != nil {
					delivery.Delivered = false
					delivery.Reason = err.Error()
					if firstErr == nil {
						firstErr = err
					}
					d.hooks.OnFailed(stream)
					d.logger.Warn("delivery failed",
						zap.String("chat_id", sub.ChatID),
						zap.String("item_id", item.ID),
						zap.Error(err),
					)
				} else {
					d.hooks.OnSent(stream)
				}

				mu.Lock()
				deliveries = append(deliveries, delivery)
				mu.Unlock()
			}

			mu.Lock()
			if firstErr != nil {
				report.Failed = append(report.Failed, domain.DeliveryFailure{
					ChatID: sub.ChatID,
					Reason: firstErr.Error(),
				})
			} else {
				report.Succeeded = append(report.Succeeded, sub.ChatID)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures are per-recipient data

	d.record(ctx, deliveries)

	d.logger.Info("dispatch complete",
		zap.String("stream", string(stream)),
		zap.Int("items", len(items)),
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report
}

// Retry re-attempts previously failed deliveries (RETRY_FAILED mode).
// Only subscribers that are still present and eligible are tried; the
// stored text is resent verbatim so the announcement matches the
// original cycle's.
func (d *Dispatcher) Retry(
	ctx context.Context,
	stream domain.Stream,
	pending []domain.Delivery,
	subs []domain.Subscriber,
	now time.Time,
) {
	if len(pending) == 0 {
		return
	}

	byChat := make(map[string]domain.Subscriber, len(subs))
	for _, sub := range subs {
		byChat[sub.ChatID] = sub
	}

	var (
		mu       sync.Mutex
		outcomes []domain.Delivery
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, p := range pending {
		sub, ok := byChat[p.ChatID]
		if !ok || !sub.Eligible(now) {
			continue
		}
		p := p
		g.Go(func() error {
			outcome := p
			outcome.Delivered = true
			outcome.Reason = ""
			if err := d.notifier.Send(gctx, p.ChatID, p.Text, p.PhotoRef); err != nil {
				outcome.Delivered = false
				outcome.Reason = err.Error()
				d.hooks.OnFailed(stream)
			} else {
				d.hooks.OnSent(stream)
				d.logger.Info("retried delivery succeeded",
					zap.String("chat_id", p.ChatID),
					zap.String("item_id", p.ItemID),
				)
			}
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.record(ctx, outcomes)
}

func (d *Dispatcher) record(ctx context.Context, deliveries []domain.Delivery) {
	if len(deliveries) == 0 {
		return
	}
	if err := d.ledger.Record(ctx, deliveries); err != nil {
		// Best effort: losing history must not fail the cycle.
		d.logger.Error("ledger record failed", zap.Error(err))
	}
}

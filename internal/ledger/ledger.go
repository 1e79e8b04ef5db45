// Package ledger records per-subscriber delivery outcomes. With the
// default configuration it is pure history (the engine stays
// at-most-once per item); with RETRY_FAILED=true the scheduler feeds
// failed entries back into dispatch on later cycles.
package ledger

import (
	"context"

	"github.com/ricirt/plexnotify/internal/domain"
)

// MaxAttempts caps retries per (stream, item, chat) so a permanently
// blocked chat does not stay in the retry set forever.
const MaxAttempts = 3

// Store defines the persistence operations for deliveries.
// The pgx implementation is in pg_store.go; the in-memory one in
// mem_store.go doubles as the test fake.
type Store interface {
	// Record upserts one outcome per (stream, item, chat). A success
	// overwrites any earlier failure; a failure bumps the attempt
	// counter.
	Record(ctx context.Context, deliveries []domain.Delivery) error

	// FindRetryable returns failed deliveries on the stream that have
	// not succeeded since and still have attempts left.
	FindRetryable(ctx context.Context, stream domain.Stream) ([]domain.Delivery, error)

	Close()
}

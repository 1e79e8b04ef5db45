package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricirt/plexnotify/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL. Used when
// DATABASE_URL is set, which makes delivery history (and the retry set
// under RETRY_FAILED) survive restarts.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Record(ctx context.Context, deliveries []domain.Delivery) error {
	for _, d := range deliveries {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx, `
			INSERT INTO deliveries
				(id, stream, item_id, item_title, chat_id, text, photo_ref,
				 delivered, attempts, reason, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9,$10,$10)
			ON CONFLICT (stream, item_id, chat_id) DO UPDATE SET
				delivered  = EXCLUDED.delivered,
				reason     = EXCLUDED.reason,
				attempts   = deliveries.attempts + (CASE WHEN EXCLUDED.delivered THEN 0 ELSE 1 END),
				updated_at = EXCLUDED.updated_at`,
			d.ID, d.Stream, d.ItemID, d.ItemTitle, d.ChatID, d.Text, d.PhotoRef,
			d.Delivered, d.Reason, d.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert delivery: %w", err)
		}
	}
	return nil
}

func (s *pgStore) FindRetryable(ctx context.Context, stream domain.Stream) ([]domain.Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, stream, item_id, item_title, chat_id, text, photo_ref,
		       delivered, attempts, reason, created_at
		FROM deliveries
		WHERE stream = $1 AND delivered = FALSE AND attempts < $2
		ORDER BY item_id, chat_id`, stream, MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("query retryable deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.ID, &d.Stream, &d.ItemID, &d.ItemTitle, &d.ChatID,
			&d.Text, &d.PhotoRef, &d.Delivered, &d.Attempts, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *pgStore) Close() { s.pool.Close() }

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ricirt/plexnotify/internal/domain"
)

type key struct {
	stream domain.Stream
	itemID string
	chatID string
}

// MemStore is the in-memory Store used when no DATABASE_URL is
// configured, and the fake used in unit tests. History does not
// survive a restart, which is acceptable for the default at-most-once
// mode where the ledger is informational.
type MemStore struct {
	mu      sync.RWMutex
	entries map[key]domain.Delivery

	// RecordErr lets tests simulate a failing ledger.
	RecordErr error
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[key]domain.Delivery)}
}

func (m *MemStore) Record(_ context.Context, deliveries []domain.Delivery) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range deliveries {
		k := key{d.Stream, d.ItemID, d.ChatID}
		existing, ok := m.entries[k]
		if !ok {
			if d.ID == "" {
				d.ID = uuid.New().String()
			}
			d.Attempts = 1
			m.entries[k] = d
			continue
		}

		existing.Delivered = d.Delivered
		existing.Reason = d.Reason
		if !d.Delivered {
			existing.Attempts++
		}
		m.entries[k] = existing
	}
	return nil
}

func (m *MemStore) FindRetryable(_ context.Context, stream domain.Stream) ([]domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Delivery
	for k, d := range m.entries {
		if k.stream != stream || d.Delivered || d.Attempts >= MaxAttempts {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].ChatID < out[j].ChatID
	})
	return out, nil
}

func (m *MemStore) Close() {}

// compile-time check that MemStore implements Store
var _ Store = (*MemStore)(nil)

package ledger_test

import (
	"context"
	"testing"

	"github.com/ricirt/plexnotify/internal/domain"
	"github.com/ricirt/plexnotify/internal/ledger"
)

func failed(item, chat string) domain.Delivery {
	return domain.Delivery{
		Stream:    domain.StreamMovies,
		ItemID:    item,
		ItemTitle: "Title " + item,
		ChatID:    chat,
		Text:      "announcement",
		Delivered: false,
		Reason:    "timeout",
	}
}

func succeeded(item, chat string) domain.Delivery {
	d := failed(item, chat)
	d.Delivered = true
	d.Reason = ""
	return d
}

func TestMemStore_RetryableLifecycle(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()

	if err := store.Record(ctx, []domain.Delivery{
		failed("1", "A"),
		succeeded("1", "B"),
	}); err != nil {
		t.Fatal(err)
	}

	t.Run("only failures are retryable", func(t *testing.T) {
		got, err := store.FindRetryable(ctx, domain.StreamMovies)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ChatID != "A" {
			t.Fatalf("expected one retryable for chat A, got %+v", got)
		}
		if got[0].Text != "announcement" {
			t.Fatal("retryable entry must carry the original text")
		}
	})

	t.Run("success clears the retry set", func(t *testing.T) {
		if err := store.Record(ctx, []domain.Delivery{succeeded("1", "A")}); err != nil {
			t.Fatal(err)
		}
		got, err := store.FindRetryable(ctx, domain.StreamMovies)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no retryables after success, got %+v", got)
		}
	})
}

func TestMemStore_AttemptsAreCapped(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()

	for i := 0; i < ledger.MaxAttempts; i++ {
		if err := store.Record(ctx, []domain.Delivery{failed("1", "A")}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.FindRetryable(ctx, domain.StreamMovies)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected exhausted delivery to leave the retry set, got %+v", got)
	}
}

func TestMemStore_StreamsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()

	if err := store.Record(ctx, []domain.Delivery{failed("1", "A")}); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindRetryable(ctx, domain.StreamSeries)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("movies failure leaked into series retry set: %+v", got)
	}
}

package detect_test

import (
	"testing"

	"github.com/ricirt/plexnotify/internal/detect"
	"github.com/ricirt/plexnotify/internal/domain"
)

// snapshot helper: items sorted AddedAt descending, as the cache keeps them.
func snapshot(addedAts ...int64) []domain.MediaItem {
	items := make([]domain.MediaItem, len(addedAts))
	for i, a := range addedAts {
		items[i] = domain.MediaItem{ID: string(rune('a' + i)), AddedAt: a}
	}
	return items
}

func TestDetectNew(t *testing.T) {
	t.Run("returns new items oldest first", func(t *testing.T) {
		got := detect.DetectNew(snapshot(400, 300, 200, 100), domain.Watermark{LastNotifiedAddedAt: 200})
		if len(got) != 2 {
			t.Fatalf("expected 2 new items, got %d", len(got))
		}
		if got[0].AddedAt != 300 || got[1].AddedAt != 400 {
			t.Fatalf("expected oldest-first order [300 400], got [%d %d]", got[0].AddedAt, got[1].AddedAt)
		}
	})

	t.Run("empty snapshot yields nothing", func(t *testing.T) {
		if got := detect.DetectNew(nil, domain.Watermark{}); len(got) != 0 {
			t.Fatalf("expected empty, got %v", got)
		}
	})

	t.Run("nothing newer than watermark", func(t *testing.T) {
		got := detect.DetectNew(snapshot(300, 200), domain.Watermark{LastNotifiedAddedAt: 300})
		if len(got) != 0 {
			t.Fatalf("expected empty, got %v", got)
		}
	})

	t.Run("watermark comparison is strict", func(t *testing.T) {
		// An item sharing the watermark's exact AddedAt was already
		// announced and must not repeat after a restart.
		got := detect.DetectNew(snapshot(500), domain.Watermark{LastNotifiedAddedAt: 500})
		if len(got) != 0 {
			t.Fatalf("expected no re-announcement at the watermark, got %v", got)
		}
	})

	t.Run("never returns items at or below watermark", func(t *testing.T) {
		w := domain.Watermark{LastNotifiedAddedAt: 250}
		for _, item := range detect.DetectNew(snapshot(400, 300, 250, 100), w) {
			if item.AddedAt <= w.LastNotifiedAddedAt {
				t.Fatalf("item with AddedAt %d leaked past watermark %d", item.AddedAt, w.LastNotifiedAddedAt)
			}
		}
	})

	t.Run("zero AddedAt items are ignored", func(t *testing.T) {
		got := detect.DetectNew(snapshot(0, 0), domain.Watermark{})
		if len(got) != 0 {
			t.Fatalf("items without AddedAt must not be announced, got %v", got)
		}
	})
}

func TestAdvance(t *testing.T) {
	t.Run("advances to batch maximum", func(t *testing.T) {
		w, moved := detect.Advance(domain.Watermark{LastNotifiedAddedAt: 100}, snapshot(300, 200))
		if !moved {
			t.Fatal("expected watermark to move")
		}
		if w.LastNotifiedAddedAt != 300 {
			t.Fatalf("expected 300, got %d", w.LastNotifiedAddedAt)
		}
	})

	t.Run("never moves backward", func(t *testing.T) {
		w, moved := detect.Advance(domain.Watermark{LastNotifiedAddedAt: 500}, snapshot(300))
		if moved {
			t.Fatal("an older batch must not move the watermark")
		}
		if w.LastNotifiedAddedAt != 500 {
			t.Fatalf("watermark regressed to %d", w.LastNotifiedAddedAt)
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		w, moved := detect.Advance(domain.Watermark{LastNotifiedAddedAt: 500}, nil)
		if moved || w.LastNotifiedAddedAt != 500 {
			t.Fatalf("expected unchanged watermark, got %+v moved=%v", w, moved)
		}
	})
}

// Running detection twice with no upstream change in between must yield
// nothing on the second pass once the watermark advanced.
func TestDetectNew_IdempotentAcrossCycles(t *testing.T) {
	snap := snapshot(400, 300, 200)
	w := domain.Watermark{LastNotifiedAddedAt: 200}

	first := detect.DetectNew(snap, w)
	if len(first) != 2 {
		t.Fatalf("expected 2 new items on first cycle, got %d", len(first))
	}

	w, _ = detect.Advance(w, first)

	second := detect.DetectNew(snap, w)
	if len(second) != 0 {
		t.Fatalf("expected no new items on second cycle, got %v", second)
	}
}

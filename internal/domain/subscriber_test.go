package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ricirt/plexnotify/internal/domain"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestParseQuietWindow(t *testing.T) {
	t.Run("valid times", func(t *testing.T) {
		w, err := domain.ParseQuietWindow("22:00", "06:30")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w.Start != 22*60 || w.End != 6*60+30 {
			t.Fatalf("unexpected window: %+v", w)
		}
	})

	t.Run("garbage start", func(t *testing.T) {
		_, err := domain.ParseQuietWindow("late", "06:00")
		if !errors.Is(err, domain.ErrInvalidQuietHours) {
			t.Fatalf("expected ErrInvalidQuietHours, got %v", err)
		}
	})

	t.Run("hour out of range", func(t *testing.T) {
		_, err := domain.ParseQuietWindow("25:00", "06:00")
		if !errors.Is(err, domain.ErrInvalidQuietHours) {
			t.Fatalf("expected ErrInvalidQuietHours, got %v", err)
		}
	})
}

func TestQuietWindow_Contains(t *testing.T) {
	overnight := &domain.QuietWindow{Start: 22 * 60, End: 6 * 60}

	tests := []struct {
		name   string
		window *domain.QuietWindow
		t      time.Time
		want   bool
	}{
		{"overnight: late evening is quiet", overnight, at(23, 30), true},
		{"overnight: morning after end is not", overnight, at(7, 0), false},
		{"overnight: start is inclusive", overnight, at(22, 0), true},
		{"overnight: end is exclusive", overnight, at(6, 0), false},
		{"overnight: just past midnight is quiet", overnight, at(0, 15), true},
		{"same-day window contains midpoint", &domain.QuietWindow{Start: 9 * 60, End: 17 * 60}, at(12, 0), true},
		{"same-day window excludes end", &domain.QuietWindow{Start: 9 * 60, End: 17 * 60}, at(17, 0), false},
		{"zero-length window is never quiet", &domain.QuietWindow{Start: 10 * 60, End: 10 * 60}, at(10, 0), false},
		{"nil window is never quiet", nil, at(3, 0), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.window.Contains(tc.t); got != tc.want {
				t.Fatalf("Contains(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestSubscriber_Eligible(t *testing.T) {
	overnight := &domain.QuietWindow{Start: 22 * 60, End: 6 * 60}

	t.Run("enabled outside quiet hours", func(t *testing.T) {
		s := domain.Subscriber{ChatID: "1", NotificationsEnabled: true, QuietHours: overnight}
		if !s.Eligible(at(12, 0)) {
			t.Fatal("expected eligible at noon")
		}
	})

	t.Run("enabled inside quiet hours", func(t *testing.T) {
		s := domain.Subscriber{ChatID: "1", NotificationsEnabled: true, QuietHours: overnight}
		if s.Eligible(at(23, 0)) {
			t.Fatal("expected not eligible at 23:00")
		}
	})

	t.Run("disabled is never eligible", func(t *testing.T) {
		s := domain.Subscriber{ChatID: "1", NotificationsEnabled: false}
		if s.Eligible(at(12, 0)) {
			t.Fatal("expected not eligible when notifications are off")
		}
	})
}

func TestMediaItem_Before(t *testing.T) {
	a := domain.MediaItem{ID: "10", AddedAt: 100}
	b := domain.MediaItem{ID: "20", AddedAt: 200}
	c := domain.MediaItem{ID: "05", AddedAt: 200}

	if !a.Before(b) {
		t.Fatal("older AddedAt should sort first")
	}
	if !c.Before(b) {
		t.Fatal("equal AddedAt should fall back to ID order")
	}
	if b.Before(b) {
		t.Fatal("an item never sorts before itself")
	}
}

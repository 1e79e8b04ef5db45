package domain

import (
	"fmt"
	"time"
)

// QuietWindow is a recurring daily do-not-disturb window defined by
// wall-clock minutes of day. A window may cross midnight (Start > End).
type QuietWindow struct {
	Start int // minutes since 00:00, inclusive
	End   int // minutes since 00:00, exclusive
}

// ParseQuietWindow parses "HH:mm" start and end times.
func ParseQuietWindow(start, end string) (*QuietWindow, error) {
	s, err := parseMinuteOfDay(start)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q", ErrInvalidQuietHours, start)
	}
	e, err := parseMinuteOfDay(end)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q", ErrInvalidQuietHours, end)
	}
	return &QuietWindow{Start: s, End: e}, nil
}

func parseMinuteOfDay(v string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range")
	}
	return h*60 + m, nil
}

// Contains reports whether t falls inside the window.
//
// Start < End covers [Start, End) on a single day; Start > End wraps
// midnight and covers [Start, 24:00) plus [00:00, End). Start == End is
// treated as a zero-length window that is never quiet: identical times
// most plausibly mean a cleared window, and the alternative reading
// would silently mute the subscriber around the clock.
func (q *QuietWindow) Contains(t time.Time) bool {
	if q == nil {
		return false
	}
	min := t.Hour()*60 + t.Minute()
	switch {
	case q.Start < q.End:
		return min >= q.Start && min < q.End
	case q.Start > q.End:
		return min >= q.Start || min < q.End
	default:
		return false
	}
}

// Subscriber is one notification recipient. Owned by the external
// user-profile store; the engine reads it and never writes it back.
type Subscriber struct {
	ChatID               string
	Name                 string
	NotificationsEnabled bool
	QuietHours           *QuietWindow
}

// Eligible reports whether the subscriber should receive a
// notification at the given time: notifications on and not inside a
// quiet-hours window.
func (s Subscriber) Eligible(at time.Time) bool {
	return s.NotificationsEnabled && !s.QuietHours.Contains(at)
}

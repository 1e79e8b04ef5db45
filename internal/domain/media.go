package domain

import "time"

// MediaType distinguishes the two catalog streams we track.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

func (t MediaType) IsValid() bool {
	switch t {
	case MediaTypeMovie, MediaTypeSeries:
		return true
	}
	return false
}

// Stream identifies one notification stream and its catalog cache key.
type Stream string

const (
	StreamMovies Stream = "movies"
	StreamSeries Stream = "series"
)

// Streams lists every stream the engine polls, in a stable order.
var Streams = []Stream{StreamMovies, StreamSeries}

func (s Stream) IsValid() bool {
	switch s {
	case StreamMovies, StreamSeries:
		return true
	}
	return false
}

// MediaType returns the item type carried on this stream.
func (s Stream) MediaType() MediaType {
	if s == StreamSeries {
		return MediaTypeSeries
	}
	return MediaTypeMovie
}

// MediaItem is one entry of the remote catalog. Immutable once fetched;
// identity is ID, ordering key for change detection is (AddedAt, ID).
type MediaItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Type         MediaType `json:"type"`
	AddedAt      int64     `json:"added_at"` // unix seconds
	ThumbnailRef string    `json:"thumbnail_ref,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Rating       float64   `json:"rating,omitempty"`
}

// Before reports whether a sorts strictly before b in ascending
// (AddedAt, ID) order. Ties on AddedAt are broken by ID so the sort
// used by the cache and the detector is deterministic.
func (m MediaItem) Before(other MediaItem) bool {
	if m.AddedAt != other.AddedAt {
		return m.AddedAt < other.AddedAt
	}
	return m.ID < other.ID
}

// Watermark marks the AddedAt value up to which items on a stream have
// already been announced. Monotonically non-decreasing.
type Watermark struct {
	LastNotifiedAddedAt int64 `json:"lastNotifiedAddedAt"`
}

// Delivery is one recorded send attempt of an item to a subscriber.
// The ledger keeps these so the optional retry mode can re-attempt
// transient failures without double-announcing. Text and PhotoRef are
// stored so a retry resends exactly what the original cycle built,
// even though the item is no longer "new" relative to the watermark.
type Delivery struct {
	ID        string    `json:"id"`
	Stream    Stream    `json:"stream"`
	ItemID    string    `json:"item_id"`
	ItemTitle string    `json:"item_title"`
	ChatID    string    `json:"chat_id"`
	Text      string    `json:"text"`
	PhotoRef  string    `json:"photo_ref,omitempty"`
	Delivered bool      `json:"delivered"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package domain

import "errors"

// Sentinel errors used throughout the application.
// The API layer translates these to HTTP status codes via a single
// mapError function; everywhere else they are matched with errors.Is.
var (
	// ErrCacheMiss: no entry, or the entry's TTL has elapsed.
	ErrCacheMiss = errors.New("cache miss")

	// ErrFetchFailed: the upstream media server was unreachable or
	// answered with a non-2xx status. The stale cache entry, if any,
	// is preserved.
	ErrFetchFailed = errors.New("upstream fetch failed")

	// ErrPartialSection: one library section failed mid-catalog-fetch.
	// The whole fetch is discarded so a partial catalog can never leak
	// into the cache and fake a "nothing new" read.
	ErrPartialSection = errors.New("partial catalog fetch")

	// ErrPersistFailed: a durable write failed; in-memory state stays
	// authoritative until the next successful persist.
	ErrPersistFailed = errors.New("persist failed")

	// ErrDeliveryFailed: a single subscriber could not be reached.
	ErrDeliveryFailed = errors.New("delivery failed")

	ErrNotFound          = errors.New("not found")
	ErrInvalidStream     = errors.New("invalid stream: must be movies or series")
	ErrInvalidQuietHours = errors.New("invalid quiet hours: expected HH:mm")
)

// Package detect computes which catalog items are genuinely new
// relative to a persisted watermark.
package detect

import "github.com/ricirt/plexnotify/internal/domain"

// DetectNew returns the items of snapshot that are strictly newer than
// the watermark, ordered oldest→newest so the earliest new item is
// announced first.
//
// The snapshot is expected sorted by AddedAt descending (the cache's
// canonical order), so the new items form a prefix. The comparison is
// strict: an item whose AddedAt equals the watermark exactly has
// already been announced and is skipped, which keeps a restart that
// reloads the same watermark value from double-announcing. Items
// without an AddedAt (zero) carry no ordering information and are
// never reported.
func DetectNew(snapshot []domain.MediaItem, w domain.Watermark) []domain.MediaItem {
	var fresh []domain.MediaItem
	for _, item := range snapshot {
		if item.AddedAt <= w.LastNotifiedAddedAt {
			break
		}
		fresh = append(fresh, item)
	}

	// Reverse the prefix: oldest new item first.
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	return fresh
}

// Advance returns the watermark after announcing batch, and whether it
// moved. It never moves backward: if the batch's maximum AddedAt is
// not newer than the current watermark the current value wins. A
// non-empty batch that does not move the watermark indicates upstream
// data inconsistency; the caller logs it and carries on.
func Advance(w domain.Watermark, batch []domain.MediaItem) (domain.Watermark, bool) {
	var max int64
	for _, item := range batch {
		if item.AddedAt > max {
			max = item.AddedAt
		}
	}
	if max <= w.LastNotifiedAddedAt {
		return w, false
	}
	return domain.Watermark{LastNotifiedAddedAt: max}, true
}

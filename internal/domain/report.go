package domain

import "time"

// DeliveryFailure records one subscriber the dispatcher could not reach.
type DeliveryFailure struct {
	ChatID string `json:"chat_id"`
	Reason string `json:"reason"`
}

// DispatchReport summarises one fan-out cycle. A failed send is
// recorded here and (unless the retry mode is enabled) never
// re-attempted: once the watermark advances the item is no longer
// "new", so delivery is at-most-once per item.
type DispatchReport struct {
	Stream    Stream            `json:"stream"`
	Items     int               `json:"items"`
	Succeeded []string          `json:"succeeded"`
	Failed    []DeliveryFailure `json:"failed"`
	Skipped   []string          `json:"skipped"` // ineligible: disabled or in quiet hours
	At        time.Time         `json:"at"`
}

// Empty reports whether the cycle reached no subscriber at all.
func (r DispatchReport) Empty() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) == 0
}

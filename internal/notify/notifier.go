package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ricirt/plexnotify/internal/domain"
)

// Notifier abstracts the outbound notification channel.
// Mocking this interface in tests gives full control over delivery
// behaviour without real chat API calls.
type Notifier interface {
	// Send delivers one message to one chat. photoRef, when non-empty,
	// is an image URL sent with the text as its caption.
	Send(ctx context.Context, chatID, text, photoRef string) error
}

const maxSummaryLen = 200

// Render builds the announcement text for one new item.
func Render(item domain.MediaItem) string {
	summary := item.Summary
	if summary == "" {
		summary = "No summary available"
	}
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen] + "..."
	}

	kind := "movie"
	if item.Type == domain.MediaTypeSeries {
		kind = "series"
	}

	added := time.Unix(item.AddedAt, 0).UTC().Format("02.01.2006")
	return fmt.Sprintf("A new %s was added:\n\nTitle: %s\n\nSummary:\n%s\n\nAdded: %s",
		kind, item.Title, summary, added)
}

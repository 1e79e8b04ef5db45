package source

import (
	"context"

	"github.com/ricirt/plexnotify/internal/domain"
)

// Source abstracts the remote media server. The cache depends on this
// interface, not on the Plex client, so tests can fake the upstream
// without real HTTP calls.
type Source interface {
	// FetchCatalog returns the complete catalog for the stream, sorted
	// by AddedAt descending (ties broken by ID). A failure of any
	// library section fails the whole fetch: partial catalogs are
	// worse than stale ones.
	FetchCatalog(ctx context.Context, stream domain.Stream) ([]domain.MediaItem, error)
}

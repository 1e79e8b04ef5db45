package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ricirt/plexnotify/internal/domain"
)

const userAgent = "plexnotify/1.0"

// PlexClient fetches library sections and their items from a Plex
// media server. The base URL and token are injected from config so
// tests can point at a local httptest server.
type PlexClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPlexClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *PlexClient {
	return &PlexClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// mediaContainer is the root of every Plex API response.
type mediaContainer struct {
	MediaContainer struct {
		Directory []sectionDTO  `json:"Directory,omitempty"`
		Metadata  []metadataDTO `json:"Metadata,omitempty"`
	} `json:"MediaContainer"`
}

// sectionDTO is one library section as returned by /library/sections.
type sectionDTO struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// metadataDTO is one media item as returned by a section listing.
type metadataDTO struct {
	RatingKey string  `json:"ratingKey"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary,omitempty"`
	Thumb     string  `json:"thumb,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	AddedAt   int64   `json:"addedAt,omitempty"`
}

// FetchCatalog enumerates every library section matching the stream's
// media type and fetches their item lists concurrently. Any section
// failure aborts the whole fetch with ErrPartialSection so the caller
// never caches a partial catalog.
func (c *PlexClient) FetchCatalog(ctx context.Context, stream domain.Stream) ([]domain.MediaItem, error) {
	sections, err := c.fetchSections(ctx)
	if err != nil {
		return nil, err
	}

	want := sectionType(stream.MediaType())

	var mu sync.Mutex
	var items []domain.MediaItem

	g, gctx := errgroup.WithContext(ctx)
	for _, sec := range sections {
		if sec.Type != want {
			continue
		}
		sec := sec
		g.Go(func() error {
			secItems, err := c.fetchSectionItems(gctx, sec.Key, stream.MediaType())
			if err != nil {
				return fmt.Errorf("%w: section %q: %v", domain.ErrPartialSection, sec.Title, err)
			}
			mu.Lock()
			items = append(items, secItems...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Newest first; deterministic on AddedAt ties.
	sort.Slice(items, func(i, j int) bool {
		return items[j].Before(items[i])
	})

	c.logger.Debug("catalog fetched",
		zap.String("stream", string(stream)),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func (c *PlexClient) fetchSections(ctx context.Context) ([]sectionDTO, error) {
	container, err := c.get(ctx, "/library/sections")
	if err != nil {
		return nil, err
	}
	return container.MediaContainer.Directory, nil
}

func (c *PlexClient) fetchSectionItems(ctx context.Context, key string, mt domain.MediaType) ([]domain.MediaItem, error) {
	container, err := c.get(ctx, fmt.Sprintf("/library/sections/%s/all", url.PathEscape(key)))
	if err != nil {
		return nil, err
	}

	items := make([]domain.MediaItem, 0, len(container.MediaContainer.Metadata))
	for _, m := range container.MediaContainer.Metadata {
		if m.Type != plexType(mt) {
			continue
		}
		items = append(items, domain.MediaItem{
			ID:           m.RatingKey,
			Title:        m.Title,
			Type:         mt,
			AddedAt:      m.AddedAt,
			ThumbnailRef: c.thumbURL(m.Thumb),
			Summary:      m.Summary,
			Rating:       m.Rating,
		})
	}
	return items, nil
}

// get performs an authenticated request and decodes the MediaContainer
// envelope. Transport errors and non-200 statuses both surface as
// ErrFetchFailed so callers can fall back to the stale cache entry.
func (c *PlexClient) get(ctx context.Context, path string) (*mediaContainer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", domain.ErrFetchFailed, resp.StatusCode, path)
	}

	var container mediaContainer
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrFetchFailed, err)
	}
	return &container, nil
}

// thumbURL turns a relative Plex thumb path into an absolute URL the
// notification channel can fetch directly.
func (c *PlexClient) thumbURL(thumb string) string {
	if thumb == "" {
		return ""
	}
	return fmt.Sprintf("%s%s?X-Plex-Token=%s", c.baseURL, thumb, url.QueryEscape(c.token))
}

func sectionType(mt domain.MediaType) string {
	if mt == domain.MediaTypeSeries {
		return "show"
	}
	return "movie"
}

func plexType(mt domain.MediaType) string {
	if mt == domain.MediaTypeSeries {
		return "show"
	}
	return "movie"
}

// compile-time check that PlexClient implements Source
var _ Source = (*PlexClient)(nil)

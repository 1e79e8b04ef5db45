package source_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/plexnotify/internal/domain"
	"github.com/ricirt/plexnotify/internal/source"
)

const sectionsBody = `{"MediaContainer":{"Directory":[
	{"key":"1","type":"movie","title":"Movies"},
	{"key":"2","type":"show","title":"Series"},
	{"key":"3","type":"movie","title":"4K Movies"}
]}}`

func movieBody(items string) string {
	return fmt.Sprintf(`{"MediaContainer":{"Metadata":[%s]}}`, items)
}

func newClient(t *testing.T, handler http.Handler) (*source.PlexClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return source.NewPlexClient(srv.URL, "test-token", 5*time.Second, zap.NewNop()), srv
}

func TestPlexClient_FetchCatalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, sectionsBody)
	})
	mux.HandleFunc("/library/sections/1/all", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, movieBody(`
			{"ratingKey":"101","type":"movie","title":"Old Film","addedAt":100,"thumb":"/thumb/101","summary":"old"},
			{"ratingKey":"102","type":"movie","title":"New Film","addedAt":300}`))
	})
	mux.HandleFunc("/library/sections/3/all", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, movieBody(`
			{"ratingKey":"103","type":"movie","title":"Mid Film","addedAt":200},
			{"ratingKey":"104","type":"clip","title":"Trailer","addedAt":999}`))
	})

	client, srv := newClient(t, mux)

	items, err := client.FetchCatalog(context.Background(), domain.StreamMovies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 movies (clip filtered out), got %d", len(items))
	}

	// Sorted AddedAt descending across sections.
	wantOrder := []string{"102", "103", "101"}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Fatalf("position %d: expected id %s, got %s", i, want, items[i].ID)
		}
	}

	if items[2].ThumbnailRef == "" {
		t.Fatal("expected thumb path to be expanded into an absolute URL")
	}
	wantThumb := srv.URL + "/thumb/101?X-Plex-Token=test-token"
	if items[2].ThumbnailRef != wantThumb {
		t.Fatalf("thumb URL mismatch: got %s, want %s", items[2].ThumbnailRef, wantThumb)
	}
}

func TestPlexClient_FetchCatalog_SectionFailureAbortsFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sectionsBody)
	})
	mux.HandleFunc("/library/sections/1/all", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, movieBody(`{"ratingKey":"101","type":"movie","title":"Fine","addedAt":100}`))
	})
	mux.HandleFunc("/library/sections/3/all", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := newClient(t, mux)

	_, err := client.FetchCatalog(context.Background(), domain.StreamMovies)
	if !errors.Is(err, domain.ErrPartialSection) {
		t.Fatalf("expected ErrPartialSection, got %v", err)
	}
}

func TestPlexClient_FetchCatalog_UpstreamDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client, _ := newClient(t, mux)

	_, err := client.FetchCatalog(context.Background(), domain.StreamMovies)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestPlexClient_FetchCatalog_SeriesUsesShowSections(t *testing.T) {
	var movieSectionHit bool
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sectionsBody)
	})
	mux.HandleFunc("/library/sections/2/all", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, movieBody(`{"ratingKey":"201","type":"show","title":"A Show","addedAt":500}`))
	})
	mux.HandleFunc("/library/sections/1/all", func(w http.ResponseWriter, r *http.Request) {
		movieSectionHit = true
		fmt.Fprint(w, movieBody(``))
	})
	mux.HandleFunc("/library/sections/3/all", func(w http.ResponseWriter, r *http.Request) {
		movieSectionHit = true
		fmt.Fprint(w, movieBody(``))
	})

	client, _ := newClient(t, mux)

	items, err := client.FetchCatalog(context.Background(), domain.StreamSeries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Type != domain.MediaTypeSeries {
		t.Fatalf("expected one series item, got %+v", items)
	}
	if movieSectionHit {
		t.Fatal("series fetch should not touch movie sections")
	}
}

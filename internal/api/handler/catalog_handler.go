package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/ricirt/plexnotify/internal/api/middleware"
	"github.com/ricirt/plexnotify/internal/cache"
	"github.com/ricirt/plexnotify/internal/domain"
	"github.com/ricirt/plexnotify/internal/scheduler"
)

// CatalogHandler serves the cached catalog and the on-demand refresh and
// invalidation endpoints.
type CatalogHandler struct {
	cache  *cache.Cache
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

func NewCatalogHandler(c *cache.Cache, sched *scheduler.Scheduler, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{cache: c, sched: sched, logger: logger}
}

// streamParam parses and validates the {stream} path parameter.
func streamParam(r *http.Request) (domain.Stream, error) {
	stream := domain.Stream(chi.URLParam(r, "stream"))
	if !stream.IsValid() {
		return "", domain.ErrInvalidStream
	}
	return stream, nil
}

// List handles GET /api/v1/catalog/{stream}
//
// Reads are served from the cache only; an expired or empty cache yields
// 404 rather than triggering an upstream fetch on the request path.
//
// @Summary  Cached catalog for one stream, newest first
// @Tags     catalog
// @Produce  json
// @Param    stream  path      string  true   "movies or series"
// @Param    limit   query     int     false  "Max items to return"
// @Success  200     {array}   domain.MediaItem
// @Failure  404     {object}  map[string]string
// @Failure  422     {object}  map[string]string
// @Router   /api/v1/catalog/{stream} [get]
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	stream, err := streamParam(r)
	if err != nil {
		mapError(w, err)
		return
	}

	items, err := h.cache.Get(stream)
	if err != nil {
		mapError(w, err)
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(items) {
			items = items[:limit]
		}
	}

	respondJSON(w, http.StatusOK, items)
}

// Refresh handles POST /api/v1/catalog/{stream}/refresh
//
// Forces an upstream fetch and persists the result. Concurrent refreshes
// of the same stream coalesce into a single upstream call.
//
// @Summary  Force a catalog refresh
// @Tags     catalog
// @Produce  json
// @Param    stream  path      string  true  "movies or series"
// @Success  200     {object}  map[string]any
// @Failure  502     {object}  map[string]string
// @Router   /api/v1/catalog/{stream}/refresh [post]
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	stream, err := streamParam(r)
	if err != nil {
		mapError(w, err)
		return
	}

	if err := h.sched.RefreshNow(r.Context(), stream); err != nil {
		h.logger.Warn("api-triggered refresh failed",
			zap.String("stream", string(stream)),
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	items, _ := h.cache.Get(stream)
	respondJSON(w, http.StatusOK, map[string]any{
		"stream": stream,
		"items":  len(items),
	})
}

// Invalidate handles POST /api/v1/catalog/{stream}/invalidate
//
// @Summary  Drop the cached entry for one stream
// @Tags     catalog
// @Success  204  "entry dropped"
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/catalog/{stream}/invalidate [post]
func (h *CatalogHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	stream, err := streamParam(r)
	if err != nil {
		mapError(w, err)
		return
	}

	h.cache.Invalidate(stream)
	w.WriteHeader(http.StatusNoContent)
}

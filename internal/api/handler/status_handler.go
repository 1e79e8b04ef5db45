package handler

import (
	"net/http"

	"github.com/ricirt/plexnotify/internal/scheduler"
)

// StatusHandler serves the per-stream operational snapshot: cycle state,
// watermark, cache age and the last dispatch report.
type StatusHandler struct {
	sched *scheduler.Scheduler
}

func NewStatusHandler(sched *scheduler.Scheduler) *StatusHandler {
	return &StatusHandler{sched: sched}
}

// Status handles GET /api/v1/status
//
// @Summary  Per-stream engine status
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]scheduler.StreamStatus
// @Router   /api/v1/status [get]
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sched.Status())
}

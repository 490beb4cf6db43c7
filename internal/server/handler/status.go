package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/ammsim/internal/service"
)

// StatusSource reports simulator counters.
type StatusSource interface {
	Status() service.Status
}

// StatusHandler serves the run mode and engine counters.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	src       StatusSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, startedAt time.Time, src StatusSource) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, src: src}
}

// Snapshot returns the status document. The websocket hub sends it to
// clients on connect.
func (h *StatusHandler) Snapshot() any {
	return map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"simulator":      h.src.Status(),
	}
}

// GetStatus responds with the run mode and simulator counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}

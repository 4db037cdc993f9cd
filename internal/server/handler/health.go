package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	startedAt time.Time
	mode      string
}

func NewHealthHandler(mode string) *HealthHandler {
	return &HealthHandler{startedAt: time.Now(), mode: mode}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

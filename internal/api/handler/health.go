package handler

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

var startTime = time.Now()

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	resolverConfigured func() bool
}

// NewHealthHandler creates a new health handler. resolverConfigured reports whether
// the resolve endpoint can reach its upstream; nil means always.
func NewHealthHandler(resolverConfigured func() bool) *HealthHandler {
	if resolverConfigured == nil {
		resolverConfigured = func() bool { return true }
	}
	return &HealthHandler{
		resolverConfigured: resolverConfigured,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Checks    map[string]any `json:"checks,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe.
// The proxy has no backing store, so it is always ready; a missing resolver key
// is reported as degraded without failing the probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	checks := map[string]any{
		"proxy":          "ok",
		"resolver":       "ok",
		"uptime":         formatUptime(time.Since(startTime)),
		"mem_alloc":      humanize.Bytes(m.Alloc),
		"num_goroutines": runtime.NumGoroutine(),
	}

	if !h.resolverConfigured() {
		checks["resolver"] = "not configured"
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "degraded",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

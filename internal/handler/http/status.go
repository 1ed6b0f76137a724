// Package http provides the HTTP status surface: the full governance
// snapshot, a liveness probe, and Prometheus metrics exposure.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"callguard/pkg/health"
)

// StatusResponse wraps a health snapshot with request metadata. The
// snapshot itself carries no timestamp so that repeated snapshots with
// no state change compare equal; the generation time is added here.
type StatusResponse struct {
	health.Snapshot
	GeneratedAt string `json:"generated_at"`
	Version     string `json:"version,omitempty"`
}

// Snapshotter produces governance snapshots. *health.Aggregator
// satisfies it.
type Snapshotter interface {
	Snapshot() health.Snapshot
}

// StatusHandler serves the full governance snapshot as JSON.
// It returns 200 for healthy and degraded systems and 503 when a
// critical dependency's breaker is open; degraded is a warning state,
// not a failure.
type StatusHandler struct {
	Aggregator Snapshotter
	Version    string
	Logger     *slog.Logger
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.Aggregator.Snapshot()

	statusCode := http.StatusOK
	if snap.Health == health.Unhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	resp := StatusResponse{
		Snapshot:    snap,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Version:     h.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil && h.Logger != nil {
		h.Logger.Error("failed to encode status response", slog.String("error", err.Error()))
	}
}

// LiveHandler answers liveness probes. It always returns 200 OK while
// the process is able to respond.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/staffhub/staffhub/shared/logger"
)

// Health is a liveness probe endpoint.
// Returns 200 OK if the server is running.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready is a readiness probe endpoint.
// Returns 503 Service Unavailable while the store cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	// Use a short timeout for health checks
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		logger.Log.Warn("readiness check failed", "component", "handler", "backend", h.cfg.Public.Store.Backend, "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("store unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

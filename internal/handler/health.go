package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports durable store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports cache store connectivity.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db    Pinger
	cache HealthChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, cache HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The durable store is required; the cache is
// reported but does not fail readiness because the core degrades without it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not reachable",
		})
		return
	}

	cacheStatus := "ok"
	if !h.cache.Healthy(ctx) {
		cacheStatus = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"cache":  cacheStatus,
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether the account store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the route index and the health check.
type HealthHandler struct {
	store   Pinger
	version string
	routes  map[string]string
}

func NewHealthHandler(store Pinger, version string, routes map[string]string) *HealthHandler {
	return &HealthHandler{store: store, version: version, routes: routes}
}

func (h *HealthHandler) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, IndexEnvelope{
		Message:         "Account service is running",
		Version:         h.version,
		AvailableRoutes: h.routes,
	})
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		slog.Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthEnvelope{Status: "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, HealthEnvelope{Status: "healthy"})
}

func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "Resource not found")
}

func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the service banner and the liveness probe.
type HealthHandler struct {
	name    string
	version string
	db      Pinger
	logger  *slog.Logger
}

func NewHealthHandler(name, version string, db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{name: name, version: version, db: db, logger: logger}
}

// HandleRoot answers GET / with the service name and version.
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": h.name + " API",
		"version": h.version,
	})
}

// HandleHealth answers GET /health. A failing database ping turns the
// response into 503 so orchestrators stop routing to this instance.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

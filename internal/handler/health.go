package handler

import (
	"log/slog"
	"net/http"
)

// HealthHandler reports liveness and which executor backend is active.
type HealthHandler struct {
	backend string
	ping    func() error
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. ping checks the history store;
// nil skips the check.
func NewHealthHandler(backend string, ping func() error, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backend: backend, ping: ping, logger: logger}
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// HandleHealth answers GET /healthz.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(); err != nil {
			h.logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Backend: h.backend})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Backend: h.backend})
}

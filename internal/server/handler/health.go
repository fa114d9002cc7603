package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	clock  domain.BlockClock
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler reporting the given block clock.
func NewHealthHandler(clock domain.BlockClock, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{clock: clock, logger: logger}
}

// HealthCheck responds with the server status and the current block reading.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if block, err := h.clock.BlockNumber(r.Context()); err == nil {
		resp["block"] = block
	} else {
		resp["status"] = "degraded"
		h.logger.WarnContext(r.Context(), "handler: block counter unavailable",
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}

package handler

import (
	"net/http"

	"github.com/ekodi-ai/gatekeeper/internal/infra/buildinfo"
)

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "ok",
		Time:    h.now().UTC(),
		Version: buildinfo.Get(),
	})
}

// Status handles GET /status with the full monitor snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, h.gate.Monitor().Snapshot())
}

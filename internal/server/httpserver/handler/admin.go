package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// AdminServer handles GET /admin/server.
func (h *Handler) AdminServer(w http.ResponseWriter, r *http.Request) {
	counts, err := h.auth.Tokens().Sessions().AllCounts(r.Context())
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	monitor := h.gate.Monitor()
	WriteJSON(w, r, http.StatusOK, ServerStatusResponse{
		Snapshot:   monitor.Snapshot(),
		Thresholds: monitor.Thresholds(),
		Sessions:   summarize(counts),
	})
}

// AdminSessions handles GET /admin/sessions.
func (h *Handler) AdminSessions(w http.ResponseWriter, r *http.Request) {
	counts, err := h.auth.Tokens().Sessions().AllCounts(r.Context())
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, SessionsResponse{SessionSummary: summarize(counts), Counts: counts})
}

// AdminForceLogout handles POST /admin/users/{id}/force-logout.
func (h *Handler) AdminForceLogout(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		WriteDomainError(w, r, domain.ErrBadRequest.WithDetails("user id required"))
		return
	}
	n, err := h.auth.Tokens().ForceLogout(r.Context(), userID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if actor, ok := domain.IdentityFromContext(r.Context()); ok {
		h.logger.InfoContext(r.Context(), "user force logged out",
			"user_id", userID, "actor_id", actor.UserID, "sessions", n)
	}
	WriteJSON(w, r, http.StatusOK, ForceLogoutResponse{UserID: userID, SessionsCleared: n})
}

func summarize(counts map[string]int) SessionSummary {
	s := SessionSummary{Users: len(counts)}
	for _, n := range counts {
		s.Total += n
	}
	return s
}

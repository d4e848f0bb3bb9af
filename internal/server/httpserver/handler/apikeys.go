package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListAPIKeys handles GET /v1/keys.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	keys, err := h.auth.ListAPIKeys(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, keys)
}

// CreateAPIKey handles POST /v1/keys.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req CreateAPIKeyRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	key, secret, err := h.auth.CreateAPIKey(r.Context(), id, req.Name)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusCreated, CreateAPIKeyResponse{APIKey: key, Secret: secret})
}

// DeactivateAPIKey handles DELETE /v1/keys/{id}.
func (h *Handler) DeactivateAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.auth.DeactivateAPIKey(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

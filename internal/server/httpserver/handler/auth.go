package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
)

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	u, pair, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusCreated, AuthResponse{User: u, Tokens: pair})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	u, pair, err := h.auth.Login(r.Context(), req.Email, req.Password, ClientIP(r))
	if domain.IsDomainError(err, domain.ErrLoginRateLimited.Code) {
		limit, window := h.auth.LoginLimits()
		WriteRateLimited(w, r, limit, window, err)
		return
	}
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, AuthResponse{User: u, Tokens: pair})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, AuthResponse{Tokens: pair})
}

// Logout handles POST /auth/logout. The access token comes from the
// Authorization header; a refresh token in the body is revoked too.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	access, ok := BearerToken(r)
	if !ok {
		WriteDomainError(w, r, domain.ErrTokenMissing)
		return
	}
	if err := h.auth.Logout(r.Context(), access, req.RefreshToken); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	perms := h.auth.Permissions()
	n, err := h.auth.Tokens().Sessions().Count(r.Context(), id.UserID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, MeResponse{
		Identity:       id,
		Limits:         perms.TierLimits(id),
		Permissions:    domain.PermissionsFor(id.Role),
		ActiveSessions: n,
	})
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// ClientIP returns the host part of RemoteAddr. Forwarding headers are
// honoured only when chi's RealIP middleware has rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

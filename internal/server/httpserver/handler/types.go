package handler

import (
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/infra/buildinfo"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Time    time.Time      `json:"time"`
	Version buildinfo.Info `json:"version"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest is the optional body of POST /auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	User   *domain.User      `json:"user,omitempty"`
	Tokens *domain.TokenPair `json:"tokens"`
}

// MeResponse describes the caller.
type MeResponse struct {
	Identity       *domain.Identity     `json:"identity"`
	Limits         domain.TierLimits    `json:"limits"`
	Permissions    domain.PermissionSet `json:"permissions"`
	ActiveSessions int                  `json:"active_sessions"`
}

// CreateAPIKeyRequest is the body of POST /v1/keys.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"omitempty,max=64"`
}

// CreateAPIKeyResponse carries the raw key, which is never shown again.
type CreateAPIKeyResponse struct {
	APIKey *domain.APIKey `json:"api_key"`
	Secret string         `json:"secret"`
}

// InferenceRequest is the body of the chat, voice and tts endpoints.
type InferenceRequest struct {
	Message        string `json:"message" validate:"required,max=8000"`
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,max=64"`

	// Kind is set from the route, not the body.
	Kind string `json:"-"`
}

// InferenceResponse is what the backend produced for one prompt.
type InferenceResponse struct {
	Kind           string      `json:"kind"`
	Reply          string      `json:"reply"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Quota          *QuotaUsage `json:"quota,omitempty"`
}

// QuotaUsage reports the caller's daily prompt usage. Limit and Remaining
// are -1 for unlimited tiers.
type QuotaUsage struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at,omitzero"`
}

// ServerStatusResponse is the body of GET /admin/server.
type ServerStatusResponse struct {
	Snapshot   domain.ServerSnapshot `json:"snapshot"`
	Thresholds domain.Thresholds     `json:"thresholds"`
	Sessions   SessionSummary        `json:"sessions"`
}

// SessionSummary aggregates live sessions.
type SessionSummary struct {
	Users int `json:"users"`
	Total int `json:"total"`
}

// SessionsResponse is the body of GET /admin/sessions.
type SessionsResponse struct {
	SessionSummary
	Counts map[string]int `json:"counts"`
}

// ForceLogoutResponse is the body of POST /admin/users/{id}/force-logout.
type ForceLogoutResponse struct {
	UserID          string `json:"user_id"`
	SessionsCleared int    `json:"sessions_cleared"`
}

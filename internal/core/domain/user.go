package domain

import (
	"strings"
	"time"
)

// User is the record kept by the external user directory. gatekeeper reads
// it to build an Identity and never owns its lifecycle beyond registration.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Tier         Tier      `json:"tier"`
	IsStaff      bool      `json:"is_staff"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail lowercases and trims an address for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity is the verified caller attached to a request context.
type Identity struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Tier    Tier   `json:"tier"`
	IsStaff bool   `json:"is_staff"`

	// SessionID is the jti of the presenting access token; empty for API-key callers.
	SessionID string `json:"session_id,omitempty"`

	// APIKeyID is set when the caller authenticated with an API key.
	APIKeyID string `json:"api_key_id,omitempty"`
}

// Identity builds the request identity for this user.
func (u *User) Identity() *Identity {
	return &Identity{
		UserID:  u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Role:    u.Role,
		Tier:    u.Tier,
		IsStaff: u.IsStaff,
	}
}

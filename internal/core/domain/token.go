package domain

import "time"

// TokenKind distinguishes access from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// IsValid reports whether k is a known kind.
func (k TokenKind) IsValid() bool {
	return k == TokenAccess || k == TokenRefresh
}

// Claims is the decoded, verified content of a token.
type Claims struct {
	Subject   string
	Role      Role
	Kind      TokenKind
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is what login, registration and refresh hand back to clients.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/pkg/token"
)

// Token lifetimes.
const (
	DefaultAccessTTL       = time.Hour
	DefaultRefreshTTL      = 7 * 24 * time.Hour
	DefaultStaffAccessTTL  = 12 * time.Hour
	DefaultStaffRefreshTTL = 30 * 24 * time.Hour

	// MinSecretLength is the shortest accepted HMAC secret in bytes.
	MinSecretLength = 32
)

// ErrWeakSecret is returned for signing secrets shorter than MinSecretLength.
var ErrWeakSecret = fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)

// TokenConfig configures a TokenAuthority.
type TokenConfig struct {
	Secret          []byte
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	StaffAccessTTL  time.Duration
	StaffRefreshTTL time.Duration
	Clock           func() time.Time
	Logger          *slog.Logger
}

// tokenClaims is the signed payload. iat_ms carries the issue time with
// millisecond precision so cutoffs set within the same second still order
// correctly against iat.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role       domain.Role      `json:"role,omitempty"`
	Type       domain.TokenKind `json:"type"`
	IssuedAtMS int64            `json:"iat_ms,omitempty"`
}

func (c *tokenClaims) toDomain() *domain.Claims {
	out := &domain.Claims{
		Subject:   c.Subject,
		Role:      c.Role,
		Kind:      c.Type,
		SessionID: c.ID,
	}
	switch {
	case c.IssuedAtMS > 0:
		out.IssuedAt = time.UnixMilli(c.IssuedAtMS)
	case c.IssuedAt != nil:
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// IssuedToken is a freshly signed token.
type IssuedToken struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// TokenAuthority issues, verifies and revokes HS256 JWTs and keeps the
// session registry in step.
type TokenAuthority struct {
	secret          []byte
	issuer          string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	staffAccessTTL  time.Duration
	staffRefreshTTL time.Duration

	sessions    *SessionRegistry
	revocations RevocationStore

	verifier *jwt.Parser
	decoder  *jwt.Parser
	now      func() time.Time
	logger   *slog.Logger
}

// NewTokenAuthority creates a TokenAuthority. Zero lifetimes take defaults.
func NewTokenAuthority(cfg TokenConfig, sessions *SessionRegistry, revocations RevocationStore) (*TokenAuthority, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "gatekeeper"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.StaffAccessTTL <= 0 {
		cfg.StaffAccessTTL = DefaultStaffAccessTTL
	}
	if cfg.StaffRefreshTTL <= 0 {
		cfg.StaffRefreshTTL = DefaultStaffRefreshTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})
	return &TokenAuthority{
		secret:          cfg.Secret,
		issuer:          cfg.Issuer,
		accessTTL:       cfg.AccessTTL,
		refreshTTL:      cfg.RefreshTTL,
		staffAccessTTL:  cfg.StaffAccessTTL,
		staffRefreshTTL: cfg.StaffRefreshTTL,
		sessions:        sessions,
		revocations:     revocations,
		verifier: jwt.NewParser(
			methods,
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(cfg.Clock),
		),
		decoder: jwt.NewParser(methods, jwt.WithoutClaimsValidation()),
		now:     cfg.Clock,
		logger:  cfg.Logger,
	}, nil
}

// IssueAccess mints an access token. Staff roles get the longer lifetime.
func (a *TokenAuthority) IssueAccess(ctx context.Context, userID string, role domain.Role) (*IssuedToken, error) {
	ttl := a.accessTTL
	if role.IsStaff() {
		ttl = a.staffAccessTTL
	}
	return a.issue(ctx, userID, role, domain.TokenAccess, ttl)
}

// IssueRefresh mints a refresh token.
func (a *TokenAuthority) IssueRefresh(ctx context.Context, userID string, isStaff bool) (*IssuedToken, error) {
	ttl := a.refreshTTL
	if isStaff {
		ttl = a.staffRefreshTTL
	}
	return a.issue(ctx, userID, "", domain.TokenRefresh, ttl)
}

// IssuePair mints an access and a refresh token for u.
func (a *TokenAuthority) IssuePair(ctx context.Context, u *domain.User) (*domain.TokenPair, error) {
	access, err := a.IssueAccess(ctx, u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := a.IssueRefresh(ctx, u.ID, u.IsStaff)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		TokenType:        "bearer",
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (a *TokenAuthority) issue(ctx context.Context, userID string, role domain.Role, kind domain.TokenKind, ttl time.Duration) (*IssuedToken, error) {
	now := a.now()
	exp := now.Add(ttl)
	jti := ulid.Make().String()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:       role,
		Type:       kind,
		IssuedAtMS: now.UnixMilli(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(fmt.Errorf("sign %s token: %w", kind, err))
	}

	if err := a.sessions.Add(ctx, userID, jti, exp); err != nil {
		return nil, err
	}
	return &IssuedToken{Token: signed, SessionID: jti, ExpiresAt: exp}, nil
}

// Verify checks, in order, the blacklist, the signature and expiry, and the
// subject's logout cutoff. Session membership is not checked here; see
// RequireActiveSession.
func (a *TokenAuthority) Verify(ctx context.Context, raw string) (*domain.Claims, error) {
	if raw == "" {
		return nil, domain.ErrTokenMissing
	}

	revoked, err := a.revocations.IsBlacklisted(ctx, token.Hash(raw))
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}

	claims, err := a.parse(a.verifier, raw)
	if err != nil {
		return nil, err
	}

	cutoff, ok, err := a.revocations.Cutoff(ctx, claims.Subject)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	// Compared in whole milliseconds: a token issued in the cutoff's own
	// millisecond cannot be ordered against it and is rejected.
	if ok && claims.IssuedAt.UnixMilli() <= cutoff.UnixMilli() {
		return nil, domain.ErrTokenRevoked.WithDetails("session invalidated")
	}
	return claims, nil
}

// VerifyKind is Verify plus a check of the token type.
func (a *TokenAuthority) VerifyKind(ctx context.Context, raw string, kind domain.TokenKind) (*domain.Claims, error) {
	claims, err := a.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, domain.ErrTokenWrongType.WithDetails(fmt.Sprintf("expected %s token", kind))
	}
	return claims, nil
}

// RequireActiveSession fails unless the token's session is still registered.
func (a *TokenAuthority) RequireActiveSession(ctx context.Context, c *domain.Claims) error {
	ok, err := a.sessions.Contains(ctx, c.Subject, c.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionInvalid
	}
	return nil
}

// Revoke blacklists raw and, if it decodes, removes its session. A token
// that fails to decode is still blacklisted. Revoking twice is harmless.
func (a *TokenAuthority) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return domain.ErrTokenMissing
	}

	until := a.now().Add(max(a.refreshTTL, a.staffRefreshTTL))
	claims, decodeErr := a.parse(a.decoder, raw)
	if decodeErr == nil && !claims.ExpiresAt.IsZero() {
		until = claims.ExpiresAt
	}

	if err := a.revocations.Blacklist(ctx, token.Hash(raw), until); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	if decodeErr != nil {
		a.logger.Debug("revoked token could not be decoded", "error", decodeErr)
		return nil
	}
	_, err := a.sessions.Remove(ctx, claims.Subject, claims.SessionID)
	return err
}

// ClaimSession removes the token's session and fails with ErrSessionInvalid
// unless this call was the one that removed it. A refresh token can
// therefore be exchanged once even when requests race.
func (a *TokenAuthority) ClaimSession(ctx context.Context, c *domain.Claims) error {
	removed, err := a.sessions.Remove(ctx, c.Subject, c.SessionID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrSessionInvalid
	}
	return nil
}

// Sessions returns the registry tokens are checked against.
func (a *TokenAuthority) Sessions() *SessionRegistry {
	return a.sessions
}

// ForceLogout invalidates every token issued to userID so far and clears
// its sessions. It returns the number of sessions cleared.
func (a *TokenAuthority) ForceLogout(ctx context.Context, userID string) (int, error) {
	if err := a.revocations.SetCutoff(ctx, userID, a.now()); err != nil {
		return 0, domain.ErrStorage.WithCause(err)
	}
	return a.sessions.Clear(ctx, userID)
}

func (a *TokenAuthority) parse(p *jwt.Parser, raw string) (*domain.Claims, error) {
	var c tokenClaims
	_, err := p.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid.WithCause(err)
	}
	if c.Subject == "" || c.ID == "" || !c.Type.IsValid() {
		return nil, domain.ErrTokenInvalid.WithDetails("incomplete claims")
	}
	return c.toDomain(), nil
}

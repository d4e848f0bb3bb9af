package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

var tracer = otel.Tracer("github.com/ekodi-ai/gatekeeper/internal/core/service")

// PermissionEvaluator answers authorization questions from the static role
// and tier tables. The zero value is ready to use.
type PermissionEvaluator struct{}

// HasPermission reports whether role holds perm.
func (PermissionEvaluator) HasPermission(role domain.Role, perm domain.Permission) bool {
	return domain.HasPermission(role, perm)
}

// TierLimits returns the effective limits of an identity.
func (PermissionEvaluator) TierLimits(id *domain.Identity) domain.TierLimits {
	return domain.LimitsFor(id)
}

// Require fails with domain.ErrForbidden unless id may perform perm.
// Regular users are refused before the table is consulted.
func (PermissionEvaluator) Require(id *domain.Identity, perm domain.Permission) error {
	if id == nil {
		return domain.ErrTokenMissing
	}
	if !id.IsStaff && id.Role == domain.RoleUser {
		return domain.ErrForbidden.WithDetails("staff access required")
	}
	if !domain.HasPermission(id.Role, perm) {
		return domain.ErrForbidden.WithDetails(string(perm))
	}
	return nil
}

// AuthServiceConfig configures an AuthService.
type AuthServiceConfig struct {
	// BcryptCost is the password hashing cost (default bcrypt.DefaultCost).
	BcryptCost int

	// KeyCacheSize and KeyCacheTTL bound the API key lookup cache.
	KeyCacheSize int
	KeyCacheTTL  time.Duration

	Clock  func() time.Time
	Logger *slog.Logger
}

// AuthService resolves credentials into identities and runs the login,
// refresh and API key flows.
type AuthService struct {
	tokens      *TokenAuthority
	users       UserDirectory
	login       *LoginLimiter
	permissions PermissionEvaluator

	keyCache    *APIKeyCache
	keyLimiters *RateLimiterRegistry

	bcryptCost int
	dummyOnce  sync.Once
	dummyHash  []byte

	now    func() time.Time
	logger *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(tokens *TokenAuthority, users UserDirectory, login *LoginLimiter, cfg AuthServiceConfig) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.KeyCacheTTL <= 0 {
		cfg.KeyCacheTTL = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthService{
		tokens:      tokens,
		users:       users,
		login:       login,
		keyCache:    NewAPIKeyCache(cfg.KeyCacheSize, cfg.KeyCacheTTL, cfg.Clock),
		keyLimiters: NewRateLimiterRegistry(),
		bcryptCost:  cfg.BcryptCost,
		now:         cfg.Clock,
		logger:      cfg.Logger,
	}
}

// Tokens returns the token authority.
func (s *AuthService) Tokens() *TokenAuthority {
	return s.tokens
}

// LoginLimits returns the per-IP login attempt ceiling and window.
func (s *AuthService) LoginLimits() (int, time.Duration) {
	return s.login.Limits()
}

// Permissions returns the permission evaluator.
func (s *AuthService) Permissions() PermissionEvaluator {
	return s.permissions
}

// Authenticate verifies an access token and loads its user. It does not
// require the session to be live; see RequireActiveSession.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	claims, err := s.tokens.VerifyKind(ctx, raw, domain.TokenAccess)
	if err != nil {
		span.SetStatus(codes.Error, domain.GetErrorCode(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", claims.Subject))

	u, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		span.SetStatus(codes.Error, domain.GetErrorCode(err))
		return nil, err
	}
	id := u.Identity()
	id.SessionID = claims.SessionID
	return id, nil
}

// RequireActiveSession fails unless the identity's token session is live.
func (s *AuthService) RequireActiveSession(ctx context.Context, id *domain.Identity) error {
	if id.SessionID == "" {
		// API key callers carry no session.
		return nil
	}
	return s.tokens.RequireActiveSession(ctx, &domain.Claims{Subject: id.UserID, SessionID: id.SessionID})
}

// activeUser loads a user for an already verified credential.
func (s *AuthService) activeUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrTokenInvalid.WithDetails("unknown subject")
	}
	if err != nil {
		return nil, wrapStorage(err)
	}
	if !u.IsActive {
		return nil, domain.ErrUserInactive
	}
	return u, nil
}

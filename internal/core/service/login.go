package service

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Register creates a regular user on the free tier and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, *domain.TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, domain.ErrBadRequest.WithDetails("unusable password").WithCause(err)
	}

	u := &domain.User{
		ID:           ulid.Make().String(),
		Email:        domain.NormalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Tier:         domain.TierFree,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, nil, wrapStorage(err)
	}

	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, pair, nil
}

// Login checks a password and issues a token pair. Every attempt counts
// against the caller's login window, successful or not.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*domain.User, *domain.TokenPair, error) {
	if _, err := s.login.Attempt(ctx, clientIP); err != nil {
		s.logger.WarnContext(ctx, "login rate limited", "client_ip", clientIP)
		return nil, nil, err
	}

	u, err := s.users.FindUserByEmail(ctx, domain.NormalizeEmail(email))
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		// Burn the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, nil, wrapStorage(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, nil, domain.ErrUserInactive
	}

	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", u.ID, "role", u.Role)
	return u, pair, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued. Role changes since the last login take effect here.
// The old session is claimed before anything is issued, so concurrent
// refreshes with one token yield a single pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.VerifyKind(ctx, refreshToken, domain.TokenRefresh)
	if err != nil {
		return nil, err
	}
	u, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.ClaimSession(ctx, claims); err != nil {
		return nil, err
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.tokens.IssuePair(ctx, u)
}

// Logout revokes the presented access token and, if given, the refresh token.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		return s.tokens.Revoke(ctx, refreshToken)
	}
	return nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gatekeeper-dummy-password"), s.bcryptCost)
	})
	return s.dummyHash
}

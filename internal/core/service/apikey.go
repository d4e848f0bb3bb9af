package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/pkg/token"
)

// AuthenticateAPIKey resolves an X-API-Key value into an identity and
// applies the owner's per-minute API rate ceiling.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, raw string) (*domain.Identity, RateDecision, error) {
	ctx, span := tracer.Start(ctx, "auth.AuthenticateAPIKey")
	defer span.End()

	var d RateDecision
	if !strings.HasPrefix(raw, domain.APIKeyPrefix) {
		return nil, d, domain.ErrAPIKeyInvalid
	}

	hash := token.Hash(raw)
	key := s.keyCache.Get(hash)
	if key == nil {
		k, err := s.users.FindAPIKeyByHash(ctx, hash)
		switch {
		case errors.Is(err, domain.ErrAPIKeyNotFound):
			return nil, d, domain.ErrAPIKeyInvalid
		case err != nil:
			return nil, d, wrapStorage(err)
		}
		key = k
		if key.Active {
			s.keyCache.Set(hash, key)
		}
	}
	if !key.Active {
		return nil, d, domain.ErrAPIKeyInvalid
	}

	u, err := s.activeUser(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			return nil, d, domain.ErrAPIKeyInvalid
		}
		return nil, d, err
	}
	id := u.Identity()
	id.APIKeyID = key.ID

	perMinute := domain.LimitsFor(id).APIRateLimit
	d.Limit = perMinute
	if perMinute <= 0 {
		return nil, d, domain.ErrForbidden.WithDetails("tier has no api access")
	}

	now := s.now()
	lim := s.keyLimiters.GetOrCreate(key.ID, perMinute)
	if !lim.AllowN(now, 1) {
		r := lim.ReserveN(now, 1)
		d.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
		return nil, d, domain.ErrRateLimited.WithDetails("api key rate limit exceeded")
	}
	d.Remaining = int(lim.TokensAt(now))

	if err := s.users.IncrementAPIKeyUsage(ctx, key.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record api key usage", "key_id", key.ID, "error", err)
	}
	return id, d, nil
}

// CreateAPIKey mints a key for the identity, bounded by its tier's key allowance.
// The raw key is returned once.
func (s *AuthService) CreateAPIKey(ctx context.Context, id *domain.Identity, name string) (*domain.APIKey, string, error) {
	allowed := domain.LimitsFor(id).MaxAPIKeys
	if allowed <= 0 {
		return nil, "", domain.ErrForbidden.WithDetails("tier has no api access")
	}

	keys, err := s.users.ListAPIKeys(ctx, id.UserID)
	if err != nil {
		return nil, "", wrapStorage(err)
	}
	active := 0
	for _, k := range keys {
		if k.Active {
			active++
		}
	}
	if active >= allowed {
		return nil, "", domain.ErrForbidden.WithDetails("api key limit reached")
	}

	if name = strings.TrimSpace(name); name == "" {
		name = "Default"
	}
	key, raw, err := domain.NewAPIKey(id.UserID, name, s.now().UTC())
	if err != nil {
		return nil, "", domain.ErrInternalServer.WithCause(err)
	}
	if err := s.users.CreateAPIKey(ctx, key); err != nil {
		return nil, "", wrapStorage(err)
	}
	s.logger.InfoContext(ctx, "api key created", "user_id", id.UserID, "key_id", key.ID)
	return key, raw, nil
}

// ListAPIKeys returns the identity's keys.
func (s *AuthService) ListAPIKeys(ctx context.Context, id *domain.Identity) ([]*domain.APIKey, error) {
	keys, err := s.users.ListAPIKeys(ctx, id.UserID)
	return keys, wrapStorage(err)
}

// DeactivateAPIKey disables one of the identity's keys. It takes effect
// immediately on this instance.
func (s *AuthService) DeactivateAPIKey(ctx context.Context, id *domain.Identity, keyID string) error {
	key, err := s.users.DeactivateAPIKey(ctx, id.UserID, keyID)
	if err != nil {
		return wrapStorage(err)
	}
	s.keyCache.Delete(key.KeyHash)
	s.keyLimiters.Delete(key.ID)
	s.logger.InfoContext(ctx, "api key deactivated", "user_id", id.UserID, "key_id", key.ID)
	return nil
}

// RateLimiterRegistry holds one token bucket per API key.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiterRegistry creates an empty registry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{limiters: make(map[string]*rate.Limiter)}
}

// GetOrCreate returns the bucket for keyID sized to perMinute requests per
// minute. An existing bucket is resized if the tier changed.
func (r *RateLimiterRegistry) GetOrCreate(keyID string, perMinute int) *rate.Limiter {
	limit := rate.Every(time.Minute / time.Duration(perMinute))

	r.mu.RLock()
	lim, ok := r.limiters[keyID]
	r.mu.RUnlock()
	if ok {
		if lim.Burst() != perMinute {
			lim.SetBurst(perMinute)
			lim.SetLimit(limit)
		}
		return lim
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.limiters[keyID]; ok {
		return lim
	}
	lim = rate.NewLimiter(limit, perMinute)
	r.limiters[keyID] = lim
	return lim
}

// Delete drops the bucket for keyID.
func (r *RateLimiterRegistry) Delete(keyID string) {
	r.mu.Lock()
	delete(r.limiters, keyID)
	r.mu.Unlock()
}

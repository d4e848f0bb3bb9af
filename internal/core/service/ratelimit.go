package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// Rate limiter defaults.
const (
	DefaultRateLimit   = 60
	DefaultRateWindow  = time.Minute
	LoginMaxAttempts   = 5
	LoginAttemptWindow = 15 * time.Minute
)

// RateDecision describes the state of one key after a check.
type RateDecision struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration // set only when rejected
}

// RateLimiter is a sliding-window limiter over a WindowStore.
type RateLimiter struct {
	store WindowStore
	now   func() time.Time
}

// NewRateLimiter creates a limiter. A nil clock means time.Now.
func NewRateLimiter(store WindowStore, clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{store: store, now: clock}
}

// Check counts one event against key. When the window already holds limit
// events the call fails with domain.ErrRateLimited and the event is not
// recorded.
func (l *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error) {
	d := RateDecision{Limit: limit}

	count, allowed, err := l.store.Hit(ctx, key, limit, window, l.now())
	if err != nil {
		return d, domain.ErrStorage.WithCause(err)
	}
	if !allowed {
		d.RetryAfter = window
		return d, domain.ErrRateLimited.WithDetails(fmt.Sprintf("max %d requests per %s", limit, window))
	}
	d.Remaining = max(0, limit-count)
	return d, nil
}

// LoginLimiter guards password login per client IP. It owns its own
// window store so it keeps working whatever happens to the generic limiter.
type LoginLimiter struct {
	limiter *RateLimiter
	max     int
	window  time.Duration
}

// NewLoginLimiter creates a limiter allowing maxAttempts per window.
// Non-positive values take the defaults of 5 per 15 minutes.
func NewLoginLimiter(store WindowStore, maxAttempts int, window time.Duration, clock func() time.Time) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = LoginMaxAttempts
	}
	if window <= 0 {
		window = LoginAttemptWindow
	}
	return &LoginLimiter{
		limiter: NewRateLimiter(store, clock),
		max:     maxAttempts,
		window:  window,
	}
}

// Attempt records one login attempt from ip.
func (l *LoginLimiter) Attempt(ctx context.Context, ip string) (RateDecision, error) {
	d, err := l.limiter.Check(ctx, "login:"+ip, l.max, l.window)
	if domain.IsDomainError(err, domain.ErrRateLimited.Code) {
		return d, domain.ErrLoginRateLimited.WithDetails("try again in " + l.window.String())
	}
	return d, err
}

// Limits returns the attempt ceiling and window.
func (l *LoginLimiter) Limits() (int, time.Duration) {
	return l.max, l.window
}

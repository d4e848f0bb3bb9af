package service

import (
	"context"
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// SessionStore keeps the set of live session ids per user.
// Memory and Redis implementations live under internal/storage.
type SessionStore interface {
	// Add registers sessionID for userID until expiresAt.
	Add(ctx context.Context, userID, sessionID string, expiresAt time.Time) error

	// Remove drops one session and reports whether it was present.
	// Removing an unknown session is not an error. Of several concurrent
	// removals of the same session, exactly one reports true.
	Remove(ctx context.Context, userID, sessionID string) (bool, error)

	// Clear drops every session of userID and returns how many there were.
	Clear(ctx context.Context, userID string) (int, error)

	// Contains reports whether sessionID is live for userID.
	Contains(ctx context.Context, userID, sessionID string) (bool, error)

	// Count returns the number of live sessions for userID.
	Count(ctx context.Context, userID string) (int, error)

	// AllCounts returns session counts for users with at least one session.
	AllCounts(ctx context.Context) (map[string]int, error)
}

// RevocationStore keeps the token blacklist and per-user logout cutoffs.
type RevocationStore interface {
	// Blacklist marks a token hash as revoked. The entry may be dropped
	// after until, when the token would have expired anyway.
	Blacklist(ctx context.Context, tokenHash string, until time.Time) error

	// IsBlacklisted reports whether a token hash was revoked.
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)

	// SetCutoff invalidates every token of userID issued before at.
	SetCutoff(ctx context.Context, userID string, at time.Time) error

	// Cutoff returns the cutoff for userID, if any.
	Cutoff(ctx context.Context, userID string) (time.Time, bool, error)
}

// WindowStore keeps sliding-window event logs.
type WindowStore interface {
	// Hit drops events of key at or before now-window, then appends now if
	// fewer than limit remain. Pruning, checking and appending are atomic
	// per key. It returns the number of events in the window afterwards.
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (count int, allowed bool, err error)
}

// QuotaStore gives transactional access to daily prompt counters.
type QuotaStore interface {
	// UpdateQuota loads the counter of userID, applies fn and persists the
	// result only if fn returns nil. It returns the counter as fn left it.
	UpdateQuota(ctx context.Context, userID string, fn func(*domain.QuotaCounter) error) (domain.QuotaCounter, error)
}

// UserDirectory is the external user and API key store.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error

	CreateAPIKey(ctx context.Context, k *domain.APIKey) error
	FindAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)
	DeactivateAPIKey(ctx context.Context, userID, keyID string) (*domain.APIKey, error)
	IncrementAPIKeyUsage(ctx context.Context, keyID string) error
}

// Sweeper is implemented by stores that need periodic removal of expired
// entries.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

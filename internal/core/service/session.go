package service

import (
	"context"
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// SessionRegistry tracks which session ids are live for each user. It is a
// thin layer over a SessionStore that maps store failures to domain errors.
type SessionRegistry struct {
	store SessionStore
}

// NewSessionRegistry creates a SessionRegistry over store.
func NewSessionRegistry(store SessionStore) *SessionRegistry {
	return &SessionRegistry{store: store}
}

// Add registers a session.
func (r *SessionRegistry) Add(ctx context.Context, userID, sessionID string, expiresAt time.Time) error {
	return wrapStorage(r.store.Add(ctx, userID, sessionID, expiresAt))
}

// Remove drops a session and reports whether this call removed it.
func (r *SessionRegistry) Remove(ctx context.Context, userID, sessionID string) (bool, error) {
	if userID == "" || sessionID == "" {
		return false, nil
	}
	removed, err := r.store.Remove(ctx, userID, sessionID)
	return removed, wrapStorage(err)
}

// Clear drops every session of a user.
func (r *SessionRegistry) Clear(ctx context.Context, userID string) (int, error) {
	n, err := r.store.Clear(ctx, userID)
	return n, wrapStorage(err)
}

// Contains reports whether a session is live.
func (r *SessionRegistry) Contains(ctx context.Context, userID, sessionID string) (bool, error) {
	if userID == "" || sessionID == "" {
		return false, nil
	}
	ok, err := r.store.Contains(ctx, userID, sessionID)
	return ok, wrapStorage(err)
}

// Count returns the number of live sessions of a user.
func (r *SessionRegistry) Count(ctx context.Context, userID string) (int, error) {
	n, err := r.store.Count(ctx, userID)
	return n, wrapStorage(err)
}

// AllCounts returns per-user counts for users with at least one session.
func (r *SessionRegistry) AllCounts(ctx context.Context) (map[string]int, error) {
	counts, err := r.store.AllCounts(ctx)
	if err != nil {
		return nil, wrapStorage(err)
	}
	for id, n := range counts {
		if n <= 0 {
			delete(counts, id)
		}
	}
	return counts, nil
}

func wrapStorage(err error) error {
	if err == nil || domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrStorage.WithCause(err)
}

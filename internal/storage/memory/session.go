package memory

import (
	"context"
	"time"

	"github.com/ekodi-ai/gatekeeper/pkg/cmap"
)

// SessionStore keeps per-user session sets.
type SessionStore struct {
	users *cmap.Map[string, map[string]time.Time]
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{users: cmap.New[string, map[string]time.Time]()}
}

// Add registers sessionID for userID.
func (s *SessionStore) Add(_ context.Context, userID, sessionID string, expiresAt time.Time) error {
	s.users.Compute(userID, func(set map[string]time.Time, ok bool) (map[string]time.Time, bool) {
		if !ok {
			set = make(map[string]time.Time)
		}
		set[sessionID] = expiresAt
		return set, true
	})
	return nil
}

// Remove drops one session. Empty sets are deleted.
func (s *SessionStore) Remove(_ context.Context, userID, sessionID string) (bool, error) {
	removed := false
	s.users.Compute(userID, func(set map[string]time.Time, ok bool) (map[string]time.Time, bool) {
		if !ok {
			return nil, false
		}
		_, removed = set[sessionID]
		delete(set, sessionID)
		return set, len(set) > 0
	})
	return removed, nil
}

// Clear drops every session of userID.
func (s *SessionStore) Clear(_ context.Context, userID string) (int, error) {
	n := 0
	s.users.Compute(userID, func(set map[string]time.Time, _ bool) (map[string]time.Time, bool) {
		n = len(set)
		return nil, false
	})
	return n, nil
}

// Contains reports whether sessionID is registered for userID.
func (s *SessionStore) Contains(_ context.Context, userID, sessionID string) (bool, error) {
	found := false
	s.users.Compute(userID, func(set map[string]time.Time, ok bool) (map[string]time.Time, bool) {
		_, found = set[sessionID]
		return set, ok
	})
	return found, nil
}

// Count returns the number of sessions of userID.
func (s *SessionStore) Count(_ context.Context, userID string) (int, error) {
	n := 0
	s.users.Compute(userID, func(set map[string]time.Time, ok bool) (map[string]time.Time, bool) {
		n = len(set)
		return set, ok
	})
	return n, nil
}

// AllCounts returns counts for users with at least one session.
func (s *SessionStore) AllCounts(context.Context) (map[string]int, error) {
	out := make(map[string]int)
	// Sets are only mutated under the shard write lock, so reading len
	// inside Range is safe.
	s.users.Range(func(id string, set map[string]time.Time) bool {
		if len(set) > 0 {
			out[id] = len(set)
		}
		return true
	})
	return out, nil
}

// Sweep drops sessions whose token has expired.
func (s *SessionStore) Sweep(_ context.Context, now time.Time) (int, error) {
	removed := 0
	s.users.DeleteIf(func(_ string, set map[string]time.Time) bool {
		for id, exp := range set {
			if !now.Before(exp) {
				delete(set, id)
				removed++
			}
		}
		return len(set) == 0
	})
	return removed, nil
}

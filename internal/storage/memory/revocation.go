package memory

import (
	"context"
	"time"

	"github.com/ekodi-ai/gatekeeper/pkg/cmap"
)

// RevocationStore keeps the token blacklist and per-user cutoffs.
type RevocationStore struct {
	blacklist *cmap.Map[string, time.Time]
	cutoffs   *cmap.Map[string, time.Time]
}

// NewRevocationStore creates an empty RevocationStore.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{
		blacklist: cmap.New[string, time.Time](),
		cutoffs:   cmap.New[string, time.Time](),
	}
}

// Blacklist records tokenHash as revoked until until.
func (s *RevocationStore) Blacklist(_ context.Context, tokenHash string, until time.Time) error {
	s.blacklist.Compute(tokenHash, func(prev time.Time, ok bool) (time.Time, bool) {
		if ok && prev.After(until) {
			return prev, true
		}
		return until, true
	})
	return nil
}

// IsBlacklisted reports whether tokenHash was revoked.
func (s *RevocationStore) IsBlacklisted(_ context.Context, tokenHash string) (bool, error) {
	_, ok := s.blacklist.Get(tokenHash)
	return ok, nil
}

// SetCutoff records a logout cutoff. A later cutoff replaces an earlier one.
func (s *RevocationStore) SetCutoff(_ context.Context, userID string, at time.Time) error {
	s.cutoffs.Compute(userID, func(prev time.Time, ok bool) (time.Time, bool) {
		if ok && prev.After(at) {
			return prev, true
		}
		return at, true
	})
	return nil
}

// Cutoff returns the cutoff for userID.
func (s *RevocationStore) Cutoff(_ context.Context, userID string) (time.Time, bool, error) {
	at, ok := s.cutoffs.Get(userID)
	return at, ok, nil
}

// Sweep drops blacklist entries whose token has expired.
func (s *RevocationStore) Sweep(_ context.Context, now time.Time) (int, error) {
	return s.blacklist.DeleteIf(func(_ string, until time.Time) bool {
		return !now.Before(until)
	}), nil
}

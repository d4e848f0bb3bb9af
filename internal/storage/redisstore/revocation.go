package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore keeps the token blacklist and logout cutoffs.
type RevocationStore struct {
	client redis.UniversalClient
	opts   Options
}

// NewRevocationStore creates a RevocationStore on client.
func NewRevocationStore(client redis.UniversalClient, opts Options) *RevocationStore {
	return &RevocationStore{client: client, opts: opts.withDefaults()}
}

// Blacklist marks tokenHash revoked until until. A token that has already
// expired is still written with a minimal TTL.
func (s *RevocationStore) Blacklist(ctx context.Context, tokenHash string, until time.Time) error {
	ttl := ttlMS(until.Sub(s.opts.Clock()))
	return setLonger.Run(ctx, s.client, []string{s.opts.Prefix + "bl:" + tokenHash}, ttl, 1).Err()
}

// IsBlacklisted reports whether tokenHash is revoked.
func (s *RevocationStore) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.client.Exists(ctx, s.opts.Prefix+"bl:"+tokenHash).Result()
	return n > 0, err
}

// SetCutoff records a logout cutoff at millisecond precision, the same
// precision tokens carry their issue time in.
func (s *RevocationStore) SetCutoff(ctx context.Context, userID string, at time.Time) error {
	return setLater.Run(ctx, s.client, []string{s.cutoffKey(userID)},
		at.UnixMilli(), s.opts.CutoffTTL.Milliseconds()).Err()
}

// Cutoff returns the cutoff of userID, if any.
func (s *RevocationStore) Cutoff(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.cutoffKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RevocationStore) cutoffKey(userID string) string {
	return s.opts.Prefix + "cutoff:" + userID
}

package redisstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps live session ids in one sorted set per user.
type SessionStore struct {
	client redis.UniversalClient
	opts   Options
}

// NewSessionStore creates a SessionStore on client.
func NewSessionStore(client redis.UniversalClient, opts Options) *SessionStore {
	return &SessionStore{client: client, opts: opts.withDefaults()}
}

func (s *SessionStore) key(userID string) string {
	return s.opts.Prefix + "sess:" + userID
}

// Add registers sessionID until expiresAt.
func (s *SessionStore) Add(ctx context.Context, userID, sessionID string, expiresAt time.Time) error {
	ttl := ttlMS(expiresAt.Sub(s.opts.Clock()))
	return addSession.Run(ctx, s.client, []string{s.key(userID)},
		unixMS(expiresAt), sessionID, ttl).Err()
}

// Remove drops one session. ZREM is atomic, so only one caller sees it removed.
func (s *SessionStore) Remove(ctx context.Context, userID, sessionID string) (bool, error) {
	n, err := s.client.ZRem(ctx, s.key(userID), sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear drops every session of userID.
func (s *SessionStore) Clear(ctx context.Context, userID string) (int, error) {
	n, err := clearSessions.Run(ctx, s.client, []string{s.key(userID)}, s.nowMS()).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Contains reports whether sessionID is registered and not yet expired.
func (s *SessionStore) Contains(ctx context.Context, userID, sessionID string) (bool, error) {
	score, err := s.client.ZScore(ctx, s.key(userID), sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return int64(score) > s.opts.Clock().UnixMilli(), nil
}

// Count returns the number of live sessions of userID.
func (s *SessionStore) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.client.ZCount(ctx, s.key(userID), "("+s.nowMS(), "+inf").Result()
	return int(n), err
}

// AllCounts scans every session set. It is meant for the admin surface,
// not the request path.
func (s *SessionStore) AllCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	prefix := s.key("")
	live := "(" + s.nowMS()

	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		n, err := s.client.ZCount(ctx, k, live, "+inf").Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[strings.TrimPrefix(k, prefix)] = int(n)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Sweep drops expired members. Whole sets expire on their own through TTLs.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	upTo := strconv.FormatInt(unixMS(now), 10)
	removed := 0

	iter := s.client.Scan(ctx, 0, s.key("")+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", upTo).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, iter.Err()
}

func (s *SessionStore) nowMS() string {
	return strconv.FormatInt(unixMS(s.opts.Clock()), 10)
}

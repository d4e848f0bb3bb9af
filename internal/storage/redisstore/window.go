package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// WindowStore keeps sliding-window event logs in sorted sets.
type WindowStore struct {
	client redis.UniversalClient
	opts   Options
}

// NewWindowStore creates a WindowStore on client.
func NewWindowStore(client redis.UniversalClient, opts Options) *WindowStore {
	return &WindowStore{client: client, opts: opts.withDefaults()}
}

// Hit runs prune, check and append in one script so concurrent instances
// never admit more than limit events.
func (s *WindowStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (int, bool, error) {
	nowMS := unixMS(now)
	res, err := hitWindow.Run(ctx, s.client, []string{s.opts.Prefix + "rl:" + key},
		nowMS-window.Milliseconds(), nowMS, limit, ulid.Make().String(), ttlMS(window),
	).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("redisstore: unexpected window reply %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

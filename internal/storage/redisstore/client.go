package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "gk:"

// Options configures the Redis stores.
type Options struct {
	Prefix string
	// CutoffTTL bounds how long a logout cutoff is kept. It must cover the
	// longest refresh token lifetime.
	CutoffTTL time.Duration
	Clock     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.CutoffTTL <= 0 {
		o.CutoffTTL = 30 * 24 * time.Hour
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Connect opens a client for url (redis://...) and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return client, nil
}

func unixMS(t time.Time) int64 {
	return t.UnixMilli()
}

// ttlMS converts d to whole milliseconds, never less than one.
func ttlMS(d time.Duration) int64 {
	return max(1, d.Milliseconds())
}

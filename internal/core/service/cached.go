package service

import "time"

// Cached holds a value together with the time it was fetched.
type Cached[T any] struct {
	Value     T
	FetchedAt time.Time
	MaxAge    time.Duration
}

// IsStale reports whether the value must be refreshed at now.
// A value that was never fetched is always stale.
func (c Cached[T]) IsStale(now time.Time) bool {
	if c.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(c.FetchedAt) >= c.MaxAge
}

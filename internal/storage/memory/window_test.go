package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStore_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	s := NewWindowStore()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := 10 * time.Second

	for i := range 3 {
		n, ok, err := s.Hit(ctx, "k", 3, w, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i+1, n)
	}

	n, ok, _ := s.Hit(ctx, "k", 3, w, start.Add(9*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 3, n)

	// The first event leaves the window exactly at start+10s.
	n, ok, _ = s.Hit(ctx, "k", 3, w, start.Add(10*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok, _ = s.Hit(ctx, "other", 3, w, start.Add(9*time.Second))
	assert.True(t, ok, "keys are independent")
}

func TestWindowStore_ConcurrentHitsNeverExceedLimit(t *testing.T) {
	ctx := context.Background()
	s := NewWindowStore()
	now := time.Now()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := s.Hit(ctx, "hot", 25, time.Minute, now); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 25, allowed.Load())
}

func TestWindowStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := NewWindowStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, _ = s.Hit(ctx, "stale", 5, time.Second, now)
	_, _, _ = s.Hit(ctx, "fresh", 5, time.Hour, now)

	removed, err := s.Sweep(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	// A swept key starts over.
	n, ok, _ := s.Hit(ctx, "stale", 5, time.Second, now.Add(time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ekodi-ai/gatekeeper/pkg/cmap"
)

// WindowStore keeps sliding-window event logs, one per key.
type WindowStore struct {
	windows *cmap.Map[string, *window]
}

type window struct {
	mu     sync.Mutex
	events []time.Time // ascending
	span   time.Duration
	dead   bool // removed by Sweep; callers holding it must retry
}

// NewWindowStore creates an empty WindowStore.
func NewWindowStore() *WindowStore {
	return &WindowStore{windows: cmap.New[string, *window]()}
}

// Hit prunes, checks and appends under the window's lock.
func (s *WindowStore) Hit(_ context.Context, key string, limit int, span time.Duration, now time.Time) (int, bool, error) {
	for {
		w := s.windows.GetOrCreate(key, func() *window { return &window{} })

		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}
		w.span = span
		w.prune(now.Add(-span))

		if len(w.events) >= limit {
			n := len(w.events)
			w.mu.Unlock()
			return n, false, nil
		}
		w.events = append(w.events, now)
		n := len(w.events)
		w.mu.Unlock()
		return n, true, nil
	}
}

// prune drops events at or before cutoff.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.events) && !w.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

// Sweep removes windows with no events inside their span.
func (s *WindowStore) Sweep(_ context.Context, now time.Time) (int, error) {
	return s.windows.DeleteIf(func(_ string, w *window) bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.prune(now.Add(-w.span))
		if len(w.events) > 0 {
			return false
		}
		w.dead = true
		return true
	}), nil
}

// Len returns the number of tracked keys.
func (s *WindowStore) Len() int {
	return s.windows.Len()
}

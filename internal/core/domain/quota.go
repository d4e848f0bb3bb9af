package domain

import "time"

// QuotaCounter is the per-user daily prompt counter owned by the user store.
type QuotaCounter struct {
	UserID    string
	Count     int
	ResetDate string // time.DateOnly in the quota time zone; empty if never used
}

// QuotaDay formats t as the calendar day used by QuotaCounter.ResetDate.
func QuotaDay(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(time.DateOnly)
}

// Roll zeroes the counter if it was last reset on another day.
// It reports whether a reset happened.
func (q *QuotaCounter) Roll(today string) bool {
	if q.ResetDate == today {
		return false
	}
	q.Count = 0
	q.ResetDate = today
	return true
}

// Consume takes one unit against limit. The counter must be rolled first.
func (q *QuotaCounter) Consume(limit int) error {
	if limit == Unlimited {
		return nil
	}
	if q.Count >= limit {
		return ErrQuotaExceeded
	}
	q.Count++
	return nil
}

// Remaining returns what is left today, or Unlimited.
func (q *QuotaCounter) Remaining(limit int) int {
	if limit == Unlimited {
		return Unlimited
	}
	return max(0, limit-q.Count)
}

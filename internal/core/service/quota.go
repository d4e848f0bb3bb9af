package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// QuotaResult reports a user's daily prompt usage after a Consume.
type QuotaResult struct {
	Limit     int
	Used      int
	Remaining int
	ResetsAt  time.Time // next midnight in the quota time zone; zero when unlimited
}

// Unlimited reports whether the identity is exempt from the daily quota.
func (r QuotaResult) Unlimited() bool {
	return r.Limit == domain.Unlimited
}

// DailyQuota enforces tier-derived daily prompt limits.
type DailyQuota struct {
	store QuotaStore
	loc   *time.Location
	now   func() time.Time
}

// NewDailyQuota creates a DailyQuota. Days roll over at midnight in loc
// (UTC if nil).
func NewDailyQuota(store QuotaStore, loc *time.Location, clock func() time.Time) *DailyQuota {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &DailyQuota{store: store, loc: loc, now: clock}
}

// Consume takes one prompt from the identity's daily allowance.
// Unlimited identities never touch the store.
func (q *DailyQuota) Consume(ctx context.Context, id *domain.Identity) (QuotaResult, error) {
	limit := domain.LimitsFor(id).DailyPrompts
	if limit == domain.Unlimited {
		return QuotaResult{Limit: limit, Remaining: domain.Unlimited}, nil
	}

	now := q.now().In(q.loc)
	today := domain.QuotaDay(now, q.loc)
	counter, err := q.store.UpdateQuota(ctx, id.UserID, func(c *domain.QuotaCounter) error {
		c.Roll(today)
		return c.Consume(limit)
	})

	res := QuotaResult{
		Limit:     limit,
		Used:      counter.Count,
		Remaining: counter.Remaining(limit),
		ResetsAt:  time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, q.loc),
	}
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, domain.ErrQuotaExceeded):
		return res, domain.ErrQuotaExceeded.WithDetails(
			fmt.Sprintf("limit of %d reached, upgrade your plan for more", limit))
	default:
		return res, domain.ErrStorage.WithCause(err)
	}
}

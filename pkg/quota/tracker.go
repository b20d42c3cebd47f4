// Package quota enforces each organization's monthly API-call ceiling.
//
// Usage is counted per organization per calendar month; the counter
// resets at midnight UTC on the first of the next month. An organization
// with no ceiling configured is unlimited but still counted.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/orgs"
)

// Result is the outcome of tracking one API call. Limit and Remaining are
// nil for unlimited organizations.
type Result struct {
	Allowed   bool
	Limit     *int64
	Remaining *int64
	ResetAt   time.Time
}

// Tracker counts API calls against each organization's monthly ceiling
type Tracker struct {
	orgs     orgs.Service
	counters CounterStore
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewTracker creates a tracker. metrics may be nil.
func NewTracker(orgService orgs.Service, counters CounterStore, logger *observability.Logger, metrics *observability.Metrics) *Tracker {
	return &Tracker{orgs: orgService, counters: counters, logger: logger, metrics: metrics, now: time.Now}
}

// TrackAPICall records one call for the organization and reports whether
// it fits under the monthly ceiling. The call that reaches the ceiling is
// still allowed; the one after it is not. An unknown organization is
// treated as unlimited.
func (t *Tracker) TrackAPICall(ctx context.Context, orgID int64) (*Result, error) {
	now := t.now().UTC()
	resetAt := startOfNextMonth(now)

	key := fmt.Sprintf("quota:%d:%s", orgID, now.Format("2006-01"))
	count, err := t.counters.Incr(ctx, key, resetAt)
	if err != nil {
		return nil, fmt.Errorf("failed to increment quota counter: %w", err)
	}
	if t.metrics != nil {
		t.metrics.QuotaTrackedTotal.Inc()
	}

	org, err := t.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil || org.MaxAPICallsPerMonth == nil {
		return &Result{Allowed: true, ResetAt: resetAt}, nil
	}

	limit := *org.MaxAPICallsPerMonth
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	res := &Result{Allowed: count <= limit, Limit: &limit, Remaining: &remaining, ResetAt: resetAt}
	if !res.Allowed {
		if t.metrics != nil {
			t.metrics.QuotaRejectionsTotal.Inc()
		}
		t.logger.WithField("organization_id", orgID).
			WithField("limit", limit).
			Warn("organization exceeded monthly API quota")
	}
	return res, nil
}

// startOfNextMonth returns midnight UTC on the first day of the month
// after now
func startOfNextMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

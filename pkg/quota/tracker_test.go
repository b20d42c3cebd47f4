package quota

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/orgs"
)

type fakeOrgs struct {
	orgs map[int64]*orgs.Organization
}

func (f *fakeOrgs) GetOrganization(_ context.Context, id int64) (*orgs.Organization, error) {
	return f.orgs[id], nil
}

func int64Ptr(v int64) *int64 { return &v }

func newTestTracker(limit *int64) *Tracker {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := &fakeOrgs{orgs: map[int64]*orgs.Organization{
		1: {ID: 1, Name: "Acme", MaxAPICallsPerMonth: limit},
	}}
	return NewTracker(svc, NewMemoryStore(), logger, nil)
}

func TestTrackAPICallUnderLimit(t *testing.T) {
	tracker := newTestTracker(int64Ptr(3))

	for i := int64(1); i <= 3; i++ {
		res, err := tracker.TrackAPICall(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		require.NotNil(t, res.Limit)
		assert.Equal(t, int64(3), *res.Limit)
		assert.Equal(t, int64(3-i), *res.Remaining)
	}
}

func TestTrackAPICallExceedsLimit(t *testing.T) {
	tracker := newTestTracker(int64Ptr(2))

	for i := 0; i < 2; i++ {
		res, err := tracker.TrackAPICall(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := tracker.TrackAPICall(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), *res.Remaining)
}

func TestTrackAPICallUnlimited(t *testing.T) {
	tracker := newTestTracker(nil)

	for i := 0; i < 10; i++ {
		res, err := tracker.TrackAPICall(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Nil(t, res.Limit)
		assert.Nil(t, res.Remaining)
	}
}

func TestTrackAPICallUnknownOrgUnlimited(t *testing.T) {
	tracker := newTestTracker(int64Ptr(1))

	res, err := tracker.TrackAPICall(context.Background(), 999)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Nil(t, res.Limit)
}

func TestResetAtIsStartOfNextMonth(t *testing.T) {
	tracker := newTestTracker(int64Ptr(5))
	tracker.now = func() time.Time {
		return time.Date(2026, time.January, 17, 13, 45, 0, 0, time.UTC)
	}

	res, err := tracker.TrackAPICall(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), res.ResetAt)
}

func TestStartOfNextMonthYearRollover(t *testing.T) {
	now := time.Date(2026, time.December, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), startOfNextMonth(now))
}

func TestCounterResetsAcrossMonths(t *testing.T) {
	// A new month means a new counter key, so usage starts over even
	// though the old entry may still exist.
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := &fakeOrgs{orgs: map[int64]*orgs.Organization{
		1: {ID: 1, MaxAPICallsPerMonth: int64Ptr(1)},
	}}
	tracker := NewTracker(svc, NewMemoryStore(), logger, nil)

	tracker.now = func() time.Time {
		return time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC)
	}
	res, err := tracker.TrackAPICall(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = tracker.TrackAPICall(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	tracker.now = func() time.Time {
		return time.Date(2026, time.April, 1, 0, 0, 1, 0, time.UTC)
	}
	res, err = tracker.TrackAPICall(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStoreIncr(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)

	expireAt := time.Now().Add(time.Hour)
	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(context.Background(), "quota:1:2026-08", expireAt)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Counters for different organizations are independent.
	got, err := store.Incr(context.Background(), "quota:2:2026-08", expireAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

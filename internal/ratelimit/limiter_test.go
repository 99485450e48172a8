package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsWithinLimit(t *testing.T) {
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewLimiter(NewMemoryStore(), WithClock(func() time.Time { return current }))

	rule := Rule{Limit: 3, Window: time.Hour}

	for i := 0; i < 3; i++ {
		res := limiter.Allow(context.Background(), "login", "student@example.com", rule)
		require.True(t, res.Allowed, "attempt %d should be allowed", i+1)
		require.Equal(t, 2-i, res.Remaining)
	}

	res := limiter.Allow(context.Background(), "login", "student@example.com", rule)
	require.False(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)
	require.Equal(t, time.Hour, res.RetryAfter)
}

func TestLimiterSlidingWindowDrainsGradually(t *testing.T) {
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewLimiter(NewMemoryStore(), WithClock(func() time.Time { return current }))

	rule := Rule{Limit: 2, Window: time.Hour}

	require.True(t, limiter.Allow(context.Background(), "register", "1.2.3.4", rule).Allowed)

	current = current.Add(30 * time.Minute)
	require.True(t, limiter.Allow(context.Background(), "register", "1.2.3.4", rule).Allowed)
	require.False(t, limiter.Allow(context.Background(), "register", "1.2.3.4", rule).Allowed)

	// 31 minutes later the first attempt has aged out but the second has not.
	current = current.Add(31 * time.Minute)
	require.True(t, limiter.Allow(context.Background(), "register", "1.2.3.4", rule).Allowed)
	require.False(t, limiter.Allow(context.Background(), "register", "1.2.3.4", rule).Allowed)
}

func TestLimiterIsolatesActionsAndIdentifiers(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	rule := Rule{Limit: 1, Window: time.Hour}

	require.True(t, limiter.Allow(context.Background(), "login", "a@example.com", rule).Allowed)
	require.True(t, limiter.Allow(context.Background(), "login", "b@example.com", rule).Allowed)
	require.True(t, limiter.Allow(context.Background(), "register", "a@example.com", rule).Allowed)
	require.False(t, limiter.Allow(context.Background(), "login", "a@example.com", rule).Allowed)
}

func TestLimiterZeroRuleAlwaysAllows(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(context.Background(), "login", "x", Rule{}).Allowed)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]time.Time, error) {
	return nil, errors.New("store down")
}

func (failingStore) Save(context.Context, string, []time.Time, time.Duration) error {
	return errors.New("store down")
}

func (failingStore) Clear(context.Context) (int, error) {
	return 0, errors.New("store down")
}

func TestLimiterFailsOpenOnStoreErrors(t *testing.T) {
	limiter := NewLimiter(failingStore{})
	rule := Rule{Limit: 1, Window: time.Hour}

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow(context.Background(), "login", "x", rule).Allowed)
	}
}

func TestLimiterClearReportsBucketCount(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore())
	rule := Rule{Limit: 5, Window: time.Hour}

	limiter.Allow(context.Background(), "login", "a@example.com", rule)
	limiter.Allow(context.Background(), "login", "b@example.com", rule)
	limiter.Allow(context.Background(), "register", "1.2.3.4", rule)

	count, err := limiter.Clear(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, count)

	count, err = limiter.Clear(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testLimiter pins the clock to a mutable instant and records sleeps instead
// of performing them.
func testLimiter(rate, burst float64) (*Limiter, *time.Time, *[]time.Duration) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sleeps := []time.Duration{}
	l := NewLimiter(rate, burst, nil)
	l.clock = func() time.Time { return now }
	l.lastRefill = now
	l.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return l, &now, &sleeps
}

func TestLimiterBurstThenDelay(t *testing.T) {
	l, _, sleeps := testLimiter(2, 2)

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	require.Empty(t, *sleeps, "burst calls proceed without delay")

	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, []time.Duration{500 * time.Millisecond}, *sleeps)
}

func TestLimiterRefillsWhileIdle(t *testing.T) {
	l, now, sleeps := testLimiter(2, 2)

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	require.InDelta(t, 0.0, l.Tokens(), 1e-9)

	*now = now.Add(time.Second)
	require.NoError(t, l.Wait(context.Background()))
	require.Empty(t, *sleeps)
	require.InDelta(t, 1.0, l.Tokens(), 1e-9)
}

func TestLimiterCapsAtBurst(t *testing.T) {
	l, now, _ := testLimiter(10, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.InDelta(t, 0.0, l.Tokens(), 1e-9)

	*now = now.Add(100 * time.Second)
	require.NoError(t, l.Wait(context.Background()))
	require.InDelta(t, 2.0, l.Tokens(), 1e-9, "refill is capped at burst before the call consumes one")
}

func TestLimiterPostWaitBudget(t *testing.T) {
	l, now, sleeps := testLimiter(2, 1)

	require.NoError(t, l.Wait(context.Background()))

	// Empty bucket: the wait grants exactly the one token this call consumes.
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, []time.Duration{500 * time.Millisecond}, *sleeps)
	require.InDelta(t, 0.0, l.Tokens(), 1e-9)

	// The refill anchor was stamped after the wait, so a quarter second later
	// only half a token has accrued.
	*now = now.Add(250 * time.Millisecond)
	require.NoError(t, l.Wait(context.Background()))
	require.Equal(t, 250*time.Millisecond, (*sleeps)[1])
}

func TestLimiterWaitCancelled(t *testing.T) {
	l, _, _ := testLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	l.sleep = func(c context.Context, _ time.Duration) error {
		cancel()
		return c.Err()
	}

	require.NoError(t, l.Wait(ctx))
	require.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestLimiterDoPassesResultThrough(t *testing.T) {
	l, _, _ := testLimiter(5, 5)

	boom := errors.New("remote failed")
	err := l.Do(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	require.NoError(t, l.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestNewLimiterGuardsInputs(t *testing.T) {
	l := NewLimiter(-3, 0, nil)
	require.Equal(t, 1.0, l.rate)
	require.Equal(t, 1.0, l.burst)
}

// engine/resilience/state_memory_test.go
package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
)

func TestMemoryBreakerStateMachine(t *testing.T) {
	ctx := context.Background()
	store := resilience.NewMemoryStateStore()
	cfg := model.BreakerConfig{
		Name:             "dep",
		Enabled:          true,
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 2,
	}
	now := time.Now()

	// Closed until the failure threshold is reached.
	for i := 0; i < 2; i++ {
		state, err := store.BreakerRecordFailure(ctx, "dep", cfg, now)
		require.NoError(t, err)
		assert.Equal(t, model.BreakerClosed, state)
	}
	state, err := store.BreakerRecordFailure(ctx, "dep", cfg, now)
	require.NoError(t, err)
	assert.Equal(t, model.BreakerOpen, state)

	allowed, state, err := store.BreakerCanExecute(ctx, "dep", cfg, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, model.BreakerOpen, state)

	// Recovery timeout elapsed: probes admitted up to the half-open cap.
	probeTime := now.Add(cfg.RecoveryTimeout + time.Second)
	allowed, state, err = store.BreakerCanExecute(ctx, "dep", cfg, probeTime)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, model.BreakerHalfOpen, state)

	allowed, _, err = store.BreakerCanExecute(ctx, "dep", cfg, probeTime)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = store.BreakerCanExecute(ctx, "dep", cfg, probeTime)
	require.NoError(t, err)
	assert.False(t, allowed, "probes beyond the half-open cap are rejected")

	// A successful probe closes the breaker and resets the failure count.
	state, err = store.BreakerRecordSuccess(ctx, "dep", cfg, probeTime)
	require.NoError(t, err)
	assert.Equal(t, model.BreakerClosed, state)

	snap, err := store.BreakerSnapshot(ctx, "dep")
	require.NoError(t, err)
	assert.Equal(t, model.BreakerClosed, snap.State)
	assert.Zero(t, snap.Failures)
}

func TestMemoryBreakerProbeFailureReopens(t *testing.T) {
	ctx := context.Background()
	store := resilience.NewMemoryStateStore()
	cfg := model.BreakerConfig{
		Name:             "dep",
		Enabled:          true,
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		HalfOpenMaxCalls: 1,
	}
	now := time.Now()

	state, err := store.BreakerRecordFailure(ctx, "dep", cfg, now)
	require.NoError(t, err)
	require.Equal(t, model.BreakerOpen, state)

	probeTime := now.Add(2 * time.Second)
	allowed, _, err := store.BreakerCanExecute(ctx, "dep", cfg, probeTime)
	require.NoError(t, err)
	require.True(t, allowed)

	state, err = store.BreakerRecordFailure(ctx, "dep", cfg, probeTime)
	require.NoError(t, err)
	assert.Equal(t, model.BreakerOpen, state, "a failed probe reopens immediately")

	allowed, _, err = store.BreakerCanExecute(ctx, "dep", cfg, probeTime.Add(100*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, allowed, "the recovery clock restarts on the probe failure")
}

func TestMemoryTokenBucketRefill(t *testing.T) {
	ctx := context.Background()
	store := resilience.NewMemoryStateStore()
	now := time.Now()

	allowed, err := store.TokenBucketAllow(ctx, "k", 1, 1, now)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = store.TokenBucketAllow(ctx, "k", 1, 1, now)
	require.NoError(t, err)
	assert.False(t, allowed, "the burst is spent")

	allowed, err = store.TokenBucketAllow(ctx, "k", 1, 1, now.Add(1100*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, allowed, "one second refills one token")
}

func TestMemorySlidingWindow(t *testing.T) {
	ctx := context.Background()
	store := resilience.NewMemoryStateStore()
	now := time.Now()
	window := time.Second

	for i := 0; i < 3; i++ {
		allowed, err := store.SlidingWindowAllow(ctx, "k", 3, window, now.Add(time.Duration(i)*100*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := store.SlidingWindowAllow(ctx, "k", 3, window, now.Add(300*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, allowed)

	// The first timestamp slides out of the window and frees a slot.
	allowed, err = store.SlidingWindowAllow(ctx, "k", 3, window, now.Add(1050*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryFixedWindowRollover(t *testing.T) {
	ctx := context.Background()
	store := resilience.NewMemoryStateStore()
	window := time.Second
	// Anchor on a window boundary so the rollover lands deterministically.
	now := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 2; i++ {
		allowed, err := store.FixedWindowAllow(ctx, "k", 2, window, now)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := store.FixedWindowAllow(ctx, "k", 2, window, now)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = store.FixedWindowAllow(ctx, "k", 2, window, now.Add(window))
	require.NoError(t, err)
	assert.True(t, allowed, "the counter resets in the next window")
}

func TestMemoryBulkheadCounters(t *testing.T) {
	ctx := context.Background()
	store := resilience.NewMemoryStateStore()

	acquired, err := store.BulkheadAcquire(ctx, "k", 2)
	require.NoError(t, err)
	assert.True(t, acquired)
	acquired, err = store.BulkheadAcquire(ctx, "k", 2)
	require.NoError(t, err)
	assert.True(t, acquired)
	acquired, err = store.BulkheadAcquire(ctx, "k", 2)
	require.NoError(t, err)
	assert.False(t, acquired, "capacity is exhausted")

	n, err := store.BulkheadInFlight(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.BulkheadRelease(ctx, "k"))
	acquired, err = store.BulkheadAcquire(ctx, "k", 2)
	require.NoError(t, err)
	assert.True(t, acquired, "a released slot is reusable")
}

// engine/resilience/rate_limiter_test.go
package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
	mock_store "github.com/dev-mohitbeniwal/aegis/engine/test/mock"
)

func newLimiterFixture(t *testing.T, cfg model.LimiterConfig, store resilience.StateStore) *resilience.RateLimiter {
	t.Helper()
	ctrl := resilience.NewController(mock_store.NewFakeStore(), time.Minute)
	_, err := ctrl.SetLimiterConfig(context.Background(), cfg)
	require.NoError(t, err)
	return resilience.NewRateLimiter(cfg.Name, ctrl, store)
}

func TestLimiterRejectsWhenQuotaExhausted(t *testing.T) {
	ctx := context.Background()
	cfg := model.LimiterConfig{
		Name:      "check",
		Enabled:   true,
		Algorithm: model.AlgorithmFixedWindow,
		Dimensions: map[model.LimitDimension]model.DimensionQuota{
			model.DimUser: {MaxRequests: 3, Window: time.Minute},
		},
	}
	rl := newLimiterFixture(t, cfg, resilience.NewMemoryStateStore())

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}))
	}
	err := rl.Allow(ctx, model.LimitKey{UserID: "u1"})
	assert.ErrorIs(t, err, aegis_errors.ErrCapacityExceeded)

	// One noisy user must not consume another user's quota.
	assert.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u2"}))
}

func TestLimiterSkipsDimensionsWithoutValue(t *testing.T) {
	ctx := context.Background()
	cfg := model.LimiterConfig{
		Name:      "check",
		Enabled:   true,
		Algorithm: model.AlgorithmFixedWindow,
		Dimensions: map[model.LimitDimension]model.DimensionQuota{
			model.DimUser: {MaxRequests: 1, Window: time.Minute},
		},
	}
	rl := newLimiterFixture(t, cfg, resilience.NewMemoryStateStore())

	// Requests without a user id never touch the user quota.
	for i := 0; i < 5; i++ {
		assert.NoError(t, rl.Allow(ctx, model.LimitKey{Origin: "10.0.0.1"}))
	}
}

func TestLimiterCombinedDimension(t *testing.T) {
	ctx := context.Background()
	cfg := model.LimiterConfig{
		Name:      "check",
		Enabled:   true,
		Algorithm: model.AlgorithmFixedWindow,
		Dimensions: map[model.LimitDimension]model.DimensionQuota{
			model.DimCombined: {MaxRequests: 2, Window: time.Minute},
		},
	}
	rl := newLimiterFixture(t, cfg, resilience.NewMemoryStateStore())

	key := model.LimitKey{UserID: "u1", ServerID: "s1", Origin: "10.0.0.1"}
	require.NoError(t, rl.Allow(ctx, key))
	require.NoError(t, rl.Allow(ctx, key))
	assert.ErrorIs(t, rl.Allow(ctx, key), aegis_errors.ErrCapacityExceeded)

	// A different composite is an independent bucket.
	assert.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1", ServerID: "s2", Origin: "10.0.0.1"}))
}

func TestLimiterDisabledAdmitsEverything(t *testing.T) {
	ctx := context.Background()
	cfg := model.LimiterConfig{
		Name:      "check",
		Enabled:   false,
		Algorithm: model.AlgorithmFixedWindow,
		Dimensions: map[model.LimitDimension]model.DimensionQuota{
			model.DimUser: {MaxRequests: 1, Window: time.Minute},
		},
	}
	rl := newLimiterFixture(t, cfg, resilience.NewMemoryStateStore())

	for i := 0; i < 10; i++ {
		assert.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}))
	}
}

func TestLimiterFallsBackWhenStoreUnreachable(t *testing.T) {
	ctx := context.Background()
	cfg := model.LimiterConfig{
		Name:      "check",
		Enabled:   true,
		Algorithm: model.AlgorithmFixedWindow,
		Dimensions: map[model.LimitDimension]model.DimensionQuota{
			model.DimUser: {MaxRequests: 2, Window: time.Minute},
		},
	}
	store := newFlakyStateStore()
	rl := newLimiterFixture(t, cfg, store)

	store.Fail = true

	// The quota is still enforced on the in-process fallback.
	require.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}))
	require.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}))
	assert.ErrorIs(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}), aegis_errors.ErrCapacityExceeded)
}

func TestLimiterServerQuotaRejectsUnderUserQuota(t *testing.T) {
	ctx := context.Background()
	cfg := model.LimiterConfig{
		Name:      "check",
		Enabled:   true,
		Algorithm: model.AlgorithmFixedWindow,
		Dimensions: map[model.LimitDimension]model.DimensionQuota{
			model.DimUser:   {MaxRequests: 10, Window: time.Minute},
			model.DimServer: {MaxRequests: 2, Window: time.Minute},
		},
	}
	rl := newLimiterFixture(t, cfg, resilience.NewMemoryStateStore())

	// Each user stays well under its own quota; the shared server quota
	// still rejects the third request against s1.
	require.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1", ServerID: "s1"}))
	require.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u2", ServerID: "s1"}))
	err := rl.Allow(ctx, model.LimitKey{UserID: "u3", ServerID: "s1"})
	assert.ErrorIs(t, err, aegis_errors.ErrCapacityExceeded)

	assert.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u3", ServerID: "s2"}))
}

func TestLimiterTokenBucketBurst(t *testing.T) {
	ctx := context.Background()
	cfg := model.LimiterConfig{
		Name:      "check",
		Enabled:   true,
		Algorithm: model.AlgorithmTokenBucket,
		Dimensions: map[model.LimitDimension]model.DimensionQuota{
			model.DimUser: {TokensPerSecond: 0.1, BurstSize: 2},
		},
	}
	rl := newLimiterFixture(t, cfg, resilience.NewMemoryStateStore())

	require.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}))
	require.NoError(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}))
	assert.ErrorIs(t, rl.Allow(ctx, model.LimitKey{UserID: "u1"}), aegis_errors.ErrCapacityExceeded,
		"the burst is spent and the refill rate is too slow to matter here")
}

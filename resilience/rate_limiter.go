// engine/resilience/rate_limiter.go
package resilience

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/metrics"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// RateLimiter admits requests against the quotas of a named limiter config.
// Each configured dimension is checked independently and any single
// exhausted dimension rejects the request, so one noisy user cannot hide
// behind a healthy aggregate.
type RateLimiter struct {
	name       string
	controller *Controller
	store      StateStore
	fallback   StateStore
}

func NewRateLimiter(name string, controller *Controller, store StateStore) *RateLimiter {
	return &RateLimiter{
		name:       name,
		controller: controller,
		store:      store,
		fallback:   NewMemoryStateStore(),
	}
}

func (rl *RateLimiter) Name() string {
	return rl.name
}

// Allow checks every configured dimension in order and returns
// ErrCapacityExceeded naming the first exhausted one. Dimensions with no
// quota or no key value are skipped.
func (rl *RateLimiter) Allow(ctx context.Context, key model.LimitKey) error {
	cfg, err := rl.controller.LimiterConfig(ctx, rl.name)
	if err != nil {
		logger.Warn("Limiter config unavailable, using last known",
			zap.String("limiter", rl.name), zap.Error(err))
	}
	if !cfg.Enabled {
		return nil
	}

	now := time.Now()
	for _, dim := range model.LimitDimensionOrder {
		quota, ok := cfg.Dimensions[dim]
		if !ok || quota.Disabled(cfg.Algorithm) {
			continue
		}
		value := key.Value(dim)
		if value == "" {
			continue
		}

		allowed, err := rl.check(ctx, rl.store, cfg.Algorithm, dim, value, quota, now)
		if err != nil {
			metrics.StateFallbacks.WithLabelValues("rate_limiter").Inc()
			logger.Warn("Limiter state store unreachable, deciding on local state",
				zap.String("limiter", rl.name), zap.String("dimension", string(dim)), zap.Error(err))
			allowed, err = rl.check(ctx, rl.fallback, cfg.Algorithm, dim, value, quota, now)
			if err != nil {
				// Both stores failed: admit. Rate limiting protects capacity,
				// it must not become the outage itself.
				logger.Error("Limiter fallback failed, admitting request",
					zap.String("limiter", rl.name), zap.Error(err))
				return nil
			}
		}
		if !allowed {
			metrics.LimiterRejections.WithLabelValues(rl.name, string(dim)).Inc()
			logger.Debug("Rate limit exceeded",
				zap.String("limiter", rl.name),
				zap.String("dimension", string(dim)),
				zap.String("key", value))
			return fmt.Errorf("limiter %s dimension %s: %w", rl.name, dim, aegis_errors.ErrCapacityExceeded)
		}
	}
	return nil
}

func (rl *RateLimiter) check(ctx context.Context, store StateStore, algorithm model.LimiterAlgorithm, dim model.LimitDimension, value string, quota model.DimensionQuota, now time.Time) (bool, error) {
	stateKey := limiterStateKey(rl.name, dim, value)
	switch algorithm {
	case model.AlgorithmTokenBucket:
		return store.TokenBucketAllow(ctx, stateKey, quota.TokensPerSecond, quota.BurstSize, now)
	case model.AlgorithmSlidingWindow:
		return store.SlidingWindowAllow(ctx, stateKey, quota.MaxRequests, quota.Window, now)
	case model.AlgorithmFixedWindow:
		return store.FixedWindowAllow(ctx, stateKey, quota.MaxRequests, quota.Window, now)
	default:
		return false, fmt.Errorf("algorithm %q: %w", algorithm, aegis_errors.ErrUnknownPrimitive)
	}
}

// Status reads the current configuration for reporting.
func (rl *RateLimiter) Status(ctx context.Context) model.LimiterStatus {
	cfg, _ := rl.controller.LimiterConfig(ctx, rl.name)
	return model.LimiterStatus{
		Name:      rl.name,
		Algorithm: cfg.Algorithm,
		Enabled:   cfg.Enabled,
	}
}

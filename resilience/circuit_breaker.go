// engine/resilience/circuit_breaker.go
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/metrics"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// CircuitBreaker guards one downstream dependency. Its state lives in the
// shared store so every process sees the same position of the state machine;
// when the store is unreachable it falls back to per-process in-memory state
// rather than failing closed.
type CircuitBreaker struct {
	name       string
	controller *Controller
	store      StateStore
	fallback   StateStore
}

func NewCircuitBreaker(name string, controller *Controller, store StateStore) *CircuitBreaker {
	return &CircuitBreaker{
		name:       name,
		controller: controller,
		store:      store,
		fallback:   NewMemoryStateStore(),
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs op under breaker admission. A rejected call fails fast with
// ErrBreakerOpen and never reaches op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	cfg, err := cb.controller.BreakerConfig(ctx, cb.name)
	if err != nil {
		logger.Warn("Breaker config unavailable, using last known",
			zap.String("breaker", cb.name), zap.Error(err))
	}
	if !cfg.Enabled {
		return op(ctx)
	}

	now := time.Now()
	store := cb.store
	allowed, state, err := store.BreakerCanExecute(ctx, cb.name, cfg, now)
	if err != nil {
		metrics.StateFallbacks.WithLabelValues("breaker").Inc()
		logger.Warn("Breaker state store unreachable, deciding on local state",
			zap.String("breaker", cb.name), zap.Error(err))
		store = cb.fallback
		allowed, state, err = store.BreakerCanExecute(ctx, cb.name, cfg, now)
		if err != nil {
			return fmt.Errorf("breaker %s: %w", cb.name, err)
		}
	}
	if !allowed {
		logger.Debug("Breaker rejected call",
			zap.String("breaker", cb.name), zap.String("state", string(state)))
		return fmt.Errorf("breaker %s: %w", cb.name, aegis_errors.ErrBreakerOpen)
	}

	opErr := op(ctx)
	if cb.countsAsFailure(opErr) {
		cb.record(ctx, store, cfg, state, false)
	} else {
		cb.record(ctx, store, cfg, state, true)
	}
	return opErr
}

// countsAsFailure reports whether the operation outcome should move the
// failure counter. Rejections by inner primitives are the protection layer
// working, not the dependency failing, and a caller hanging up is not the
// dependency's fault either. Timeouts are failures.
func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, aegis_errors.ErrCapacityExceeded) || errors.Is(err, aegis_errors.ErrBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func (cb *CircuitBreaker) record(ctx context.Context, store StateStore, cfg model.BreakerConfig, before model.BreakerState, success bool) {
	var after model.BreakerState
	var err error
	if success {
		after, err = store.BreakerRecordSuccess(ctx, cb.name, cfg, time.Now())
	} else {
		after, err = store.BreakerRecordFailure(ctx, cb.name, cfg, time.Now())
	}
	if err != nil {
		logger.Warn("Failed to record breaker outcome",
			zap.String("breaker", cb.name), zap.Bool("success", success), zap.Error(err))
		return
	}
	if after != before {
		metrics.BreakerTransitions.WithLabelValues(cb.name, string(after)).Inc()
		logger.Info("Breaker state changed",
			zap.String("breaker", cb.name),
			zap.String("from", string(before)),
			zap.String("to", string(after)))
	}
}

// Status reads the shared state for reporting. A store error degrades to the
// local fallback view.
func (cb *CircuitBreaker) Status(ctx context.Context) model.BreakerStatus {
	snap, err := cb.store.BreakerSnapshot(ctx, cb.name)
	if err != nil {
		snap, _ = cb.fallback.BreakerSnapshot(ctx, cb.name)
	}
	return model.BreakerStatus{
		Name:           cb.name,
		State:          snap.State,
		Failures:       snap.Failures,
		LastFailureAt:  snap.LastFailureAt,
		ProbesInFlight: snap.ProbesInFlight,
	}
}

// engine/resilience/state.go
package resilience

import (
	"context"
	"time"

	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// BreakerSnapshot is a read-only view of one breaker's shared state, used for
// reporting only, never for decisions.
type BreakerSnapshot struct {
	State          model.BreakerState
	Failures       int
	LastFailureAt  time.Time
	ProbesInFlight int
}

// StateStore holds the runtime state of every protection primitive. The
// shared implementation lives in the remote store and mutates state through
// single-round-trip scripts; a separate get followed by a set for the same
// decision is a race under concurrent callers. The in-memory implementation
// is the per-process fallback when the store is unreachable.
//
// Every transition takes the caller's clock so admission decisions are
// deterministic under test.
type StateStore interface {
	BreakerCanExecute(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (bool, model.BreakerState, error)
	BreakerRecordSuccess(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (model.BreakerState, error)
	BreakerRecordFailure(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (model.BreakerState, error)
	BreakerSnapshot(ctx context.Context, name string) (BreakerSnapshot, error)

	TokenBucketAllow(ctx context.Context, key string, tokensPerSecond float64, burst int, now time.Time) (bool, error)
	SlidingWindowAllow(ctx context.Context, key string, maxRequests int, window time.Duration, now time.Time) (bool, error)
	FixedWindowAllow(ctx context.Context, key string, maxRequests int, window time.Duration, now time.Time) (bool, error)

	BulkheadAcquire(ctx context.Context, key string, capacity int) (bool, error)
	BulkheadRelease(ctx context.Context, key string) error
	BulkheadInFlight(ctx context.Context, key string) (int, error)
}

func breakerStateKey(name string) string {
	return "rs:cb:" + name
}

func bulkheadStateKey(name, isolationKey string) string {
	return "rs:bh:" + name + ":" + isolationKey
}

func limiterStateKey(name string, dim model.LimitDimension, value string) string {
	return "rs:rl:" + name + ":" + string(dim) + ":" + value
}

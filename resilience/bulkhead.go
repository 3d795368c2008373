// engine/resilience/bulkhead.go
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/config"
	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/metrics"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// Token is an admitted bulkhead slot. Release is idempotent and must be
// called exactly when the guarded work finishes, normally via defer.
type Token struct {
	release func()
	once    sync.Once
}

func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(t.release)
}

// Bulkhead caps concurrent executions per isolation key across all
// processes. The counter lives in the shared store; a process crash leaves
// its slots to expire with the counter TTL instead of leaking forever.
type Bulkhead struct {
	name       string
	controller *Controller
	store      StateStore
	fallback   StateStore

	mu       sync.Mutex
	seenKeys map[string]struct{}
}

func NewBulkhead(name string, controller *Controller, store StateStore) *Bulkhead {
	return &Bulkhead{
		name:       name,
		controller: controller,
		store:      store,
		fallback:   NewMemoryStateStore(),
		seenKeys:   make(map[string]struct{}),
	}
}

func (bh *Bulkhead) Name() string {
	return bh.name
}

// Admit acquires a slot for isolationKey, waiting up to the configured
// MaxWait for one to free up. On success the caller owns the returned token
// and must release it.
func (bh *Bulkhead) Admit(ctx context.Context, isolationKey string) (*Token, error) {
	cfg, err := bh.controller.BulkheadConfig(ctx, bh.name)
	if err != nil {
		logger.Warn("Bulkhead config unavailable, using last known",
			zap.String("bulkhead", bh.name), zap.Error(err))
	}
	if !cfg.Enabled {
		return &Token{release: func() {}}, nil
	}

	bh.remember(isolationKey)
	stateKey := bulkheadStateKey(bh.name, isolationKey)
	deadline := time.Now().Add(cfg.MaxWait)
	retryInterval := config.GetDuration("resilience.bulkheadRetryInterval")

	store := bh.store
	for {
		acquired, err := store.BulkheadAcquire(ctx, stateKey, cfg.MaxConcurrent)
		if err != nil && store == bh.store {
			metrics.StateFallbacks.WithLabelValues("bulkhead").Inc()
			logger.Warn("Bulkhead state store unreachable, deciding on local state",
				zap.String("bulkhead", bh.name), zap.Error(err))
			store = bh.fallback
			acquired, err = store.BulkheadAcquire(ctx, stateKey, cfg.MaxConcurrent)
		}
		if err != nil {
			return nil, fmt.Errorf("bulkhead %s: %w", bh.name, err)
		}
		if acquired {
			return bh.token(store, stateKey), nil
		}
		if time.Now().After(deadline) {
			metrics.BulkheadRejections.WithLabelValues(bh.name).Inc()
			logger.Debug("Bulkhead rejected call",
				zap.String("bulkhead", bh.name), zap.String("isolationKey", isolationKey))
			return nil, fmt.Errorf("bulkhead %s key %s: %w", bh.name, isolationKey, aegis_errors.ErrCapacityExceeded)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// token binds the release to the store that granted the slot. Release runs
// on a fresh context so a slot is returned even when the request context is
// already cancelled.
func (bh *Bulkhead) token(store StateStore, stateKey string) *Token {
	return &Token{release: func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.BulkheadRelease(ctx, stateKey); err != nil {
			logger.Warn("Failed to release bulkhead slot",
				zap.String("bulkhead", bh.name), zap.String("key", stateKey), zap.Error(err))
		}
	}}
}

func (bh *Bulkhead) remember(isolationKey string) {
	bh.mu.Lock()
	bh.seenKeys[isolationKey] = struct{}{}
	bh.mu.Unlock()
}

// Status sums in-flight counts over the isolation keys this process has
// seen. The view is partial by construction and for reporting only.
func (bh *Bulkhead) Status(ctx context.Context) model.BulkheadStatus {
	cfg, _ := bh.controller.BulkheadConfig(ctx, bh.name)

	bh.mu.Lock()
	keys := make([]string, 0, len(bh.seenKeys))
	for k := range bh.seenKeys {
		keys = append(keys, k)
	}
	bh.mu.Unlock()

	total := 0
	for _, k := range keys {
		n, err := bh.store.BulkheadInFlight(ctx, bulkheadStateKey(bh.name, k))
		if err != nil {
			n, _ = bh.fallback.BulkheadInFlight(ctx, bulkheadStateKey(bh.name, k))
		}
		total += n
	}
	return model.BulkheadStatus{
		Name:          bh.name,
		InFlight:      total,
		MaxConcurrent: cfg.MaxConcurrent,
	}
}

// engine/invalidation/engine.go
package invalidation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/metrics"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

// Event types published on the invalidation lifecycle.
const (
	EventEnqueued  = "invalidation.enqueued"
	EventProcessed = "invalidation.processed"
	EventEscalated = "invalidation.escalated"
)

// KeyBroadcaster announces local-tier drops to peer processes.
type KeyBroadcaster interface {
	Publish(ctx context.Context, keys ...string)
}

// Engine performs targeted and batched invalidation through the reverse
// indexes. A dropped invalidation would let a user keep stale permissions,
// so write-path store failures are retried and then escalated, never
// swallowed.
type Engine struct {
	tierOne   *cache.TierOne
	tierTwo   *cache.TierTwo
	index     *ReverseIndex
	queue     *DelayedQueue
	bus       *util.EventBus
	broadcast KeyBroadcaster

	retryAttempts int
	retryBackoff  time.Duration
}

func NewEngine(tierOne *cache.TierOne, tierTwo *cache.TierTwo, index *ReverseIndex, queue *DelayedQueue, bus *util.EventBus, retryAttempts int, retryBackoff time.Duration) *Engine {
	return &Engine{
		tierOne:       tierOne,
		tierTwo:       tierTwo,
		index:         index,
		queue:         queue,
		bus:           bus,
		retryAttempts: retryAttempts,
		retryBackoff:  retryBackoff,
	}
}

// SetBroadcaster enables cross-process first-tier drops. Without one, peer
// copies age out on their own TTL.
func (e *Engine) SetBroadcaster(b KeyBroadcaster) {
	e.broadcast = b
}

func (e *Engine) dropLocal(ctx context.Context, keys ...string) {
	for _, key := range keys {
		e.tierOne.Delete(key)
	}
	if e.broadcast != nil {
		e.broadcast.Publish(ctx, keys...)
	}
}

// withRetry retries store-unavailable failures with a fixed backoff. Other
// errors are returned immediately.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= e.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(e.retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, aegis_errors.ErrStoreUnavailable) {
			return err
		}
		logger.Warn("Invalidation store operation failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return err
}

// Invalidate removes one cache key from the requested tiers and deregisters
// it from the reverse indexes.
func (e *Engine) Invalidate(ctx context.Context, cacheKey, reason string, dims model.Dimensions, level model.CacheLevel) error {
	if !level.Valid() {
		return aegis_errors.ErrInvalidCacheLevel
	}

	if level == model.CacheLevelL1 || level == model.CacheLevelAll {
		e.dropLocal(ctx, cacheKey)
	}

	if level == model.CacheLevelL2 || level == model.CacheLevelAll {
		err := e.withRetry(ctx, "tier-two delete", func() error {
			return e.tierTwo.Delete(ctx, cacheKey)
		})
		if err != nil {
			return e.escalate(ctx, model.InvalidationTask{
				ID:         uuid.New().String(),
				CacheKey:   cacheKey,
				Level:      level,
				Reason:     reason,
				EnqueuedAt: time.Now(),
				Dimensions: dims,
			}, err)
		}
	}

	// An L1-only drop leaves the entry cached in tier two, and the index
	// must keep tracking it so a later user or role invalidation can still
	// reach it. Deregister only once the entry has left tier two.
	if level == model.CacheLevelL2 || level == model.CacheLevelAll {
		if err := e.withRetry(ctx, "index deregister", func() error {
			return e.index.Deregister(ctx, cacheKey)
		}); err != nil {
			logger.Error("Failed to deregister invalidated key from indexes",
				zap.String("cacheKey", cacheKey), zap.Error(err))
			// The index TTL bounds the orphan; the entry itself is gone.
		}
	}

	metrics.InvalidationsProcessed.WithLabelValues("processed").Inc()
	return nil
}

// InvalidateByDimension invalidates everything indexed under one dimension
// value: one membership read, one delete per affected key, then the index
// entry itself. O(affected keys), not O(keyspace).
func (e *Engine) InvalidateByDimension(ctx context.Context, dim model.DimensionType, value, reason string) (int, error) {
	if !dim.Valid() {
		return 0, fmt.Errorf("dimension %q: %w", dim, aegis_errors.ErrUnknownDimension)
	}

	var keys []string
	err := e.withRetry(ctx, "index lookup", func() error {
		var lookupErr error
		keys, lookupErr = e.index.KeysFor(ctx, dim, value)
		return lookupErr
	})
	if err != nil {
		return 0, err
	}

	var failed []string
	for _, key := range keys {
		e.dropLocal(ctx, key)
		deleteErr := e.withRetry(ctx, "tier-two delete", func() error {
			return e.tierTwo.Delete(ctx, key)
		})
		if deleteErr != nil {
			failed = append(failed, key)
			continue
		}
	}

	if err := e.withRetry(ctx, "index deregister", func() error {
		return e.index.Deregister(ctx, keys...)
	}); err != nil {
		logger.Error("Failed to deregister keys from indexes",
			zap.String("dimension", string(dim)), zap.String("value", value), zap.Error(err))
	}
	if err := e.withRetry(ctx, "index drop", func() error {
		return e.index.Drop(ctx, dim, value)
	}); err != nil {
		logger.Error("Failed to drop index entry",
			zap.String("dimension", string(dim)), zap.String("value", value), zap.Error(err))
	}

	for _, key := range failed {
		escErr := e.escalate(ctx, model.InvalidationTask{
			ID:         uuid.New().String(),
			CacheKey:   key,
			Level:      model.CacheLevelL2,
			Reason:     reason,
			EnqueuedAt: time.Now(),
		}, aegis_errors.ErrStoreUnavailable)
		if escErr != nil {
			return len(keys) - len(failed), escErr
		}
	}

	e.bus.Publish(ctx, EventProcessed, model.DimensionPair{Type: dim, Value: value})
	metrics.InvalidationsProcessed.WithLabelValues("processed").Add(float64(len(keys) - len(failed)))
	return len(keys) - len(failed), nil
}

// Enqueue adds a task to the delayed queue for a worker to coalesce. Used by
// bulk writes (role or pattern level changes) where synchronous invalidation
// would fan out to thousands of keys on the write path.
func (e *Engine) Enqueue(ctx context.Context, task model.InvalidationTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	if task.Level == "" {
		task.Level = model.CacheLevelAll
	}

	err := e.withRetry(ctx, "queue enqueue", func() error {
		return e.queue.Enqueue(ctx, task)
	})
	if err != nil {
		// Surfaced, never dropped: the caller decides whether to fail
		// the permission write or retry it entirely.
		e.bus.Publish(ctx, EventEscalated, task)
		return err
	}
	e.bus.Publish(ctx, EventEnqueued, task)
	return nil
}

// ProcessBatch drains up to count tasks and invalidates them grouped by
// dimension: each group costs one reverse-index lookup instead of replaying
// its tasks one by one.
func (e *Engine) ProcessBatch(ctx context.Context, count int) (int, error) {
	tasks, err := e.queue.PopOldest(ctx, count)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	processed := 0
	groups := make(map[model.DimensionPair][]model.InvalidationTask)
	var singles []model.InvalidationTask
	for _, task := range tasks {
		pairs := task.Dimensions.Pairs()
		if len(pairs) == 0 {
			singles = append(singles, task)
			continue
		}
		groups[pairs[0]] = append(groups[pairs[0]], task)
	}

	for pair, groupTasks := range groups {
		n, err := e.InvalidateByDimension(ctx, pair.Type, pair.Value, groupTasks[0].Reason)
		if err != nil {
			logger.Error("Batch invalidation group failed",
				zap.String("dimension", string(pair.Type)), zap.String("value", pair.Value), zap.Error(err))
			metrics.InvalidationsProcessed.WithLabelValues("failed").Add(float64(len(groupTasks)))
			// The tasks were already popped off the queue; put them
			// back with their original enqueue times so the next drain
			// retries them instead of losing the invalidation.
			for _, task := range groupTasks {
				if escErr := e.escalate(ctx, task, err); escErr != nil {
					logger.Error("Failed to re-enqueue batch invalidation task",
						zap.String("taskId", task.ID), zap.Error(escErr))
				}
			}
			continue
		}
		processed += n
		// Tasks carrying an explicit key are invalidated individually as
		// well, in case the key was cached while its index write failed.
		for _, task := range groupTasks {
			if task.CacheKey == "" {
				continue
			}
			if err := e.Invalidate(ctx, task.CacheKey, task.Reason, task.Dimensions, task.Level); err != nil {
				logger.Error("Task invalidation failed", zap.String("cacheKey", task.CacheKey), zap.Error(err))
			}
		}
	}

	for _, task := range singles {
		if task.CacheKey == "" {
			continue
		}
		if err := e.Invalidate(ctx, task.CacheKey, task.Reason, task.Dimensions, task.Level); err != nil {
			logger.Error("Task invalidation failed", zap.String("cacheKey", task.CacheKey), zap.Error(err))
			metrics.InvalidationsProcessed.WithLabelValues("failed").Inc()
			continue
		}
		processed++
	}
	return processed, nil
}

// CleanupExpired range-deletes tasks older than maxAge. The reverse indexes
// pointing at the same cache keys are co-invalidated: cleaning the queue
// without cleaning the indexes grows orphaned index entries without bound.
func (e *Engine) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	tasks, err := e.queue.ExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	for _, task := range tasks {
		if task.CacheKey != "" {
			if err := e.Invalidate(ctx, task.CacheKey, task.Reason, task.Dimensions, task.Level); err != nil {
				logger.Error("Expired task invalidation failed", zap.String("cacheKey", task.CacheKey), zap.Error(err))
			}
		}
		for _, pair := range task.Dimensions.Pairs() {
			if _, err := e.InvalidateByDimension(ctx, pair.Type, pair.Value, task.Reason); err != nil {
				logger.Error("Expired task dimension invalidation failed",
					zap.String("dimension", string(pair.Type)), zap.String("value", pair.Value), zap.Error(err))
			}
		}
	}

	if err := e.queue.DropBefore(ctx, cutoff); err != nil {
		return 0, err
	}
	logger.Info("Expired invalidation tasks cleaned up", zap.Int("count", len(tasks)))
	return len(tasks), nil
}

// escalate re-enqueues a failed invalidation with its original enqueue time
// and publishes an escalation for audit. Returns the original error when the
// escalation itself cannot be persisted.
func (e *Engine) escalate(ctx context.Context, task model.InvalidationTask, cause error) error {
	logger.Error("Invalidation failed, escalating",
		zap.String("cacheKey", task.CacheKey), zap.String("reason", task.Reason), zap.Error(cause))
	metrics.InvalidationsProcessed.WithLabelValues("escalated").Inc()

	if err := e.queue.Enqueue(ctx, task); err != nil {
		e.bus.Publish(ctx, EventEscalated, task)
		return cause
	}
	e.bus.Publish(ctx, EventEscalated, task)
	return nil
}

// engine/invalidation/queue.go
package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/db"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/metrics"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

const queueKey = "invq"

// DelayedQueue is the shared time-ordered invalidation queue: a sorted set
// scored by enqueue time. Writers enqueue to coalesce bursts; workers drain
// the oldest tasks in enqueue order.
type DelayedQueue struct {
	store db.ConfigStore
}

func NewDelayedQueue(store db.ConfigStore) *DelayedQueue {
	return &DelayedQueue{store: store}
}

func (q *DelayedQueue) Enqueue(ctx context.Context, task model.InvalidationTask) error {
	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation task: %w", err)
	}
	return q.store.ZAdd(ctx, queueKey, float64(task.EnqueuedAt.UnixNano()), string(member))
}

// PopOldest atomically removes and returns up to count tasks in enqueue-time
// order. Undecodable members are dropped with a log line rather than wedging
// the queue.
func (q *DelayedQueue) PopOldest(ctx context.Context, count int) ([]model.InvalidationTask, error) {
	members, err := q.store.ZPopOldest(ctx, queueKey, count)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.InvalidationTask, 0, len(members))
	for _, member := range members {
		var task model.InvalidationTask
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			logger.Warn("Dropping undecodable invalidation task", zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ExpiredBefore returns, without removing, every task enqueued before cutoff.
func (q *DelayedQueue) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]model.InvalidationTask, error) {
	members, err := q.store.ZRangeByScore(ctx, queueKey, math.Inf(-1), float64(cutoff.UnixNano()))
	if err != nil {
		return nil, err
	}
	tasks := make([]model.InvalidationTask, 0, len(members))
	for _, member := range members {
		var task model.InvalidationTask
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			logger.Warn("Dropping undecodable invalidation task", zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DropBefore range-deletes every task enqueued before cutoff.
func (q *DelayedQueue) DropBefore(ctx context.Context, cutoff time.Time) error {
	return q.store.ZRemRangeByScore(ctx, queueKey, math.Inf(-1), float64(cutoff.UnixNano()))
}

// Remove deletes one known task exactly.
func (q *DelayedQueue) Remove(ctx context.Context, task model.InvalidationTask) error {
	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation task: %w", err)
	}
	return q.store.ZRem(ctx, queueKey, string(member))
}

// Depth reports the number of pending tasks and refreshes the gauge.
func (q *DelayedQueue) Depth(ctx context.Context) (int64, error) {
	depth, err := q.store.ZCard(ctx, queueKey)
	if err != nil {
		return 0, err
	}
	metrics.QueueDepth.Set(float64(depth))
	return depth, nil
}

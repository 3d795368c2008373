// engine/invalidation/worker.go
package invalidation

import (
	"context"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
)

// Worker drains the delayed queue on an interval and periodically expires
// stale tasks. Tasks are drained in enqueue-time order; invalidation across
// different keys is eventually consistent, bounded by the drain interval.
type Worker struct {
	engine          *Engine
	queue           *DelayedQueue
	drainInterval   time.Duration
	batchSize       int
	cleanupInterval time.Duration
	maxTaskAge      time.Duration
}

func NewWorker(engine *Engine, queue *DelayedQueue, drainInterval time.Duration, batchSize int, cleanupInterval, maxTaskAge time.Duration) *Worker {
	return &Worker{
		engine:          engine,
		queue:           queue,
		drainInterval:   drainInterval,
		batchSize:       batchSize,
		cleanupInterval: cleanupInterval,
		maxTaskAge:      maxTaskAge,
	}
}

// Start runs the drain and cleanup loops until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go w.drainLoop(ctx)
	go w.cleanupLoop(ctx)
}

func (w *Worker) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(w.drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			processed, err := w.engine.ProcessBatch(ctx, w.batchSize)
			if err != nil {
				logger.Error("Failed to drain invalidation queue", zap.Error(err))
				continue
			}
			if processed > 0 {
				logger.Debug("Drained invalidation tasks", zap.Int("processed", processed))
			}
			if _, err := w.queue.Depth(ctx); err != nil {
				logger.Debug("Failed to read invalidation queue depth", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.engine.CleanupExpired(ctx, w.maxTaskAge); err != nil {
				logger.Error("Failed to clean up expired invalidation tasks", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

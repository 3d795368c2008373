// engine/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters consumed by observability. Cache counters are labeled by strategy
// and tier so a hot strategy's behavior is visible in isolation.
var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache hits by strategy and tier.",
	}, []string{"strategy", "tier"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache misses by strategy and tier.",
	}, []string{"strategy", "tier"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Tier-one evictions by strategy.",
	}, []string{"strategy"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "resilience",
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state transitions by name and new state.",
	}, []string{"name", "state"})

	LimiterRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "resilience",
		Name:      "limiter_rejections_total",
		Help:      "Rate limiter rejections by name and dimension.",
	}, []string{"name", "dimension"})

	BulkheadRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "resilience",
		Name:      "bulkhead_rejections_total",
		Help:      "Bulkhead rejections by name.",
	}, []string{"name"})

	StateFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "resilience",
		Name:      "state_fallbacks_total",
		Help:      "Protection decisions served from in-process fallback state.",
	}, []string{"primitive"})

	InvalidationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "invalidation",
		Name:      "tasks_processed_total",
		Help:      "Invalidation tasks processed by outcome.",
	}, []string{"outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aegis",
		Subsystem: "invalidation",
		Name:      "queue_depth",
		Help:      "Pending tasks in the delayed invalidation queue.",
	})
)

// engine/resilience/state_memory.go
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// MemoryStateStore keeps protection state in process memory. It is the
// fallback when the shared store is unreachable: a degraded decision made on
// local state beats no protection at all. It is never authoritative while
// the shared store is healthy.
type MemoryStateStore struct {
	mu        sync.Mutex
	breakers  map[string]*memoryBreaker
	buckets   map[string]*memoryBucket
	windows   map[string][]int64
	counters  map[string]*memoryCounter
	bulkheads map[string]int
}

type memoryBreaker struct {
	state         model.BreakerState
	failures      int
	lastFailureAt time.Time
	probes        int
}

type memoryBucket struct {
	tokens float64
	ts     time.Time
}

type memoryCounter struct {
	bucket int64
	count  int
}

var _ StateStore = &MemoryStateStore{}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		breakers:  make(map[string]*memoryBreaker),
		buckets:   make(map[string]*memoryBucket),
		windows:   make(map[string][]int64),
		counters:  make(map[string]*memoryCounter),
		bulkheads: make(map[string]int),
	}
}

func (s *MemoryStateStore) breaker(name string) *memoryBreaker {
	b, ok := s.breakers[name]
	if !ok {
		b = &memoryBreaker{state: model.BreakerClosed}
		s.breakers[name] = b
	}
	return b
}

func (s *MemoryStateStore) BreakerCanExecute(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (bool, model.BreakerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.breaker(name)
	switch b.state {
	case model.BreakerClosed:
		return true, model.BreakerClosed, nil
	case model.BreakerOpen:
		if now.Sub(b.lastFailureAt) >= cfg.RecoveryTimeout {
			b.state = model.BreakerHalfOpen
			b.probes = 1
			return true, model.BreakerHalfOpen, nil
		}
		return false, model.BreakerOpen, nil
	default:
		if b.probes < cfg.HalfOpenMaxCalls {
			b.probes++
			return true, model.BreakerHalfOpen, nil
		}
		return false, model.BreakerHalfOpen, nil
	}
}

func (s *MemoryStateStore) BreakerRecordSuccess(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (model.BreakerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.breaker(name)
	switch b.state {
	case model.BreakerHalfOpen:
		b.state = model.BreakerClosed
		b.failures = 0
		b.probes = 0
	case model.BreakerClosed:
		b.failures = 0
	}
	return b.state, nil
}

func (s *MemoryStateStore) BreakerRecordFailure(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (model.BreakerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.breaker(name)
	if b.state == model.BreakerHalfOpen {
		b.state = model.BreakerOpen
		b.lastFailureAt = now
		b.probes = 0
		return b.state, nil
	}
	b.failures++
	b.lastFailureAt = now
	if b.failures >= cfg.FailureThreshold {
		b.state = model.BreakerOpen
	} else {
		b.state = model.BreakerClosed
	}
	return b.state, nil
}

func (s *MemoryStateStore) BreakerSnapshot(ctx context.Context, name string) (BreakerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.breaker(name)
	return BreakerSnapshot{
		State:          b.state,
		Failures:       b.failures,
		LastFailureAt:  b.lastFailureAt,
		ProbesInFlight: b.probes,
	}, nil
}

func (s *MemoryStateStore) TokenBucketAllow(ctx context.Context, key string, tokensPerSecond float64, burst int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &memoryBucket{tokens: float64(burst), ts: now}
		s.buckets[key] = b
	}
	elapsed := now.Sub(b.ts).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * tokensPerSecond
		if b.tokens > float64(burst) {
			b.tokens = float64(burst)
		}
	}
	b.ts = now
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

func (s *MemoryStateStore) SlidingWindowAllow(ctx context.Context, key string, maxRequests int, window time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window).UnixNano()
	stamps := s.windows[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= maxRequests {
		s.windows[key] = kept
		return false, nil
	}
	s.windows[key] = append(kept, now.UnixNano())
	return true, nil
}

func (s *MemoryStateStore) FixedWindowAllow(ctx context.Context, key string, maxRequests int, window time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := now.UnixMilli() / window.Milliseconds()
	c, ok := s.counters[key]
	if !ok || c.bucket != bucket {
		c = &memoryCounter{bucket: bucket}
		s.counters[key] = c
	}
	c.count++
	return c.count <= maxRequests, nil
}

func (s *MemoryStateStore) BulkheadAcquire(ctx context.Context, key string, capacity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bulkheads[key] >= capacity {
		return false, nil
	}
	s.bulkheads[key]++
	return true, nil
}

func (s *MemoryStateStore) BulkheadRelease(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bulkheads[key] > 0 {
		s.bulkheads[key]--
	}
	return nil
}

func (s *MemoryStateStore) BulkheadInFlight(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkheads[key], nil
}

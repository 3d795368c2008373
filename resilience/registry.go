// engine/resilience/registry.go
package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// Registry hands out protection primitives by name. Two callers asking for
// the same name get the same instance, so local bookkeeping such as the
// breaker fallback state is shared within the process.
type Registry struct {
	controller *Controller
	store      StateStore

	mu        sync.Mutex
	breakers  map[string]*CircuitBreaker
	limiters  map[string]*RateLimiter
	bulkheads map[string]*Bulkhead
}

func NewRegistry(controller *Controller, store StateStore) *Registry {
	return &Registry{
		controller: controller,
		store:      store,
		breakers:   make(map[string]*CircuitBreaker),
		limiters:   make(map[string]*RateLimiter),
		bulkheads:  make(map[string]*Bulkhead),
	}
}

func (r *Registry) Breaker(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(name, r.controller, r.store)
		r.breakers[name] = cb
	}
	return cb
}

func (r *Registry) Limiter(name string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	rl, ok := r.limiters[name]
	if !ok {
		rl = NewRateLimiter(name, r.controller, r.store)
		r.limiters[name] = rl
	}
	return rl
}

func (r *Registry) Bulkhead(name string) *Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()
	bh, ok := r.bulkheads[name]
	if !ok {
		bh = NewBulkhead(name, r.controller, r.store)
		r.bulkheads[name] = bh
	}
	return bh
}

// Snapshot collects the current state of every primitive this process has
// instantiated, sorted by name for stable output.
func (r *Registry) Snapshot(ctx context.Context) model.ProtectionSnapshot {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	limiters := make([]*RateLimiter, 0, len(r.limiters))
	for _, rl := range r.limiters {
		limiters = append(limiters, rl)
	}
	bulkheads := make([]*Bulkhead, 0, len(r.bulkheads))
	for _, bh := range r.bulkheads {
		bulkheads = append(bulkheads, bh)
	}
	r.mu.Unlock()

	snap := model.ProtectionSnapshot{TakenAt: time.Now()}
	for _, cb := range breakers {
		snap.Breakers = append(snap.Breakers, cb.Status(ctx))
	}
	for _, rl := range limiters {
		snap.Limiters = append(snap.Limiters, rl.Status(ctx))
	}
	for _, bh := range bulkheads {
		snap.Bulkheads = append(snap.Bulkheads, bh.Status(ctx))
	}
	sort.Slice(snap.Breakers, func(i, j int) bool { return snap.Breakers[i].Name < snap.Breakers[j].Name })
	sort.Slice(snap.Limiters, func(i, j int) bool { return snap.Limiters[i].Name < snap.Limiters[j].Name })
	sort.Slice(snap.Bulkheads, func(i, j int) bool { return snap.Bulkheads[i].Name < snap.Bulkheads[j].Name })
	return snap
}

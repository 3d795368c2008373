// engine/cache/tier_one.go
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/metrics"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// PartitionConfig sizes one strategy partition.
type PartitionConfig struct {
	MaxItems int
	TTL      time.Duration
}

// TierOne is the in-process cache tier. Each strategy owns an independently
// sized and independently expiring partition with its own lock, so a hot
// strategy cannot evict a cold one and unrelated strategies never serialize
// on a shared mutex.
type TierOne struct {
	mu         sync.RWMutex
	partitions map[model.Strategy]*partition
	defaults   PartitionConfig
}

type partition struct {
	mu        sync.Mutex
	strategy  model.Strategy
	items     map[string]*list.Element
	lru       *list.List
	maxItems  int
	ttl       time.Duration
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type tierOneItem struct {
	key       string
	value     model.PermissionSet
	expiresAt time.Time
}

// NewTierOne builds the configured strategy partitions up front. Lookups for
// a strategy without explicit configuration get a partition with the default
// sizing, created lazily.
func NewTierOne(configs map[model.Strategy]PartitionConfig, defaults PartitionConfig) *TierOne {
	t := &TierOne{
		partitions: make(map[model.Strategy]*partition, len(configs)),
		defaults:   defaults,
	}
	for strategy, cfg := range configs {
		t.partitions[strategy] = newPartition(strategy, cfg)
	}
	return t
}

func newPartition(strategy model.Strategy, cfg PartitionConfig) *partition {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 1000
	}
	return &partition{
		strategy: strategy,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		maxItems: cfg.MaxItems,
		ttl:      cfg.TTL,
	}
}

func (t *TierOne) partition(strategy model.Strategy) *partition {
	t.mu.RLock()
	p, ok := t.partitions[strategy]
	t.mu.RUnlock()
	if ok {
		return p
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok = t.partitions[strategy]; ok {
		return p
	}
	p = newPartition(strategy, t.defaults)
	t.partitions[strategy] = p
	logger.Debug("Created tier-one partition with default sizing", zap.String("strategy", string(strategy)))
	return p
}

// Get returns the cached value for key, expiring it in place if its TTL has
// elapsed.
func (t *TierOne) Get(strategy model.Strategy, key string) (model.PermissionSet, bool) {
	p := t.partition(strategy)
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.items[key]
	if !ok {
		p.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(string(strategy), "l1").Inc()
		return model.PermissionSet{}, false
	}
	item := elem.Value.(*tierOneItem)
	if time.Now().After(item.expiresAt) {
		p.removeLocked(elem)
		p.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(string(strategy), "l1").Inc()
		return model.PermissionSet{}, false
	}
	p.lru.MoveToFront(elem)
	p.hits.Add(1)
	metrics.CacheHits.WithLabelValues(string(strategy), "l1").Inc()
	return item.value, true
}

// GetMulti sweeps the partition once for a batch of keys and returns the hits.
func (t *TierOne) GetMulti(strategy model.Strategy, keys []string) map[string]model.PermissionSet {
	p := t.partition(strategy)
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	found := make(map[string]model.PermissionSet, len(keys))
	for _, key := range keys {
		elem, ok := p.items[key]
		if !ok {
			p.misses.Add(1)
			metrics.CacheMisses.WithLabelValues(string(strategy), "l1").Inc()
			continue
		}
		item := elem.Value.(*tierOneItem)
		if now.After(item.expiresAt) {
			p.removeLocked(elem)
			p.misses.Add(1)
			metrics.CacheMisses.WithLabelValues(string(strategy), "l1").Inc()
			continue
		}
		p.lru.MoveToFront(elem)
		p.hits.Add(1)
		metrics.CacheHits.WithLabelValues(string(strategy), "l1").Inc()
		found[key] = item.value
	}
	return found
}

// Set stores the value, evicting the least recently used entry when the
// partition is at capacity.
func (t *TierOne) Set(strategy model.Strategy, key string, value model.PermissionSet) {
	p := t.partition(strategy)
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.items[key]; ok {
		item := elem.Value.(*tierOneItem)
		item.value = value
		item.expiresAt = time.Now().Add(p.ttl)
		p.lru.MoveToFront(elem)
		return
	}

	for p.lru.Len() >= p.maxItems {
		oldest := p.lru.Back()
		if oldest == nil {
			break
		}
		p.removeLocked(oldest)
		p.evictions.Add(1)
		metrics.CacheEvictions.WithLabelValues(string(strategy)).Inc()
	}

	elem := p.lru.PushFront(&tierOneItem{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(p.ttl),
	})
	p.items[key] = elem
}

// Delete removes a key wherever it lives. Invalidation tasks carry opaque
// cache keys, so every partition is checked; the partition count is the
// strategy count, not the key count.
func (t *TierOne) Delete(key string) {
	t.mu.RLock()
	partitions := make([]*partition, 0, len(t.partitions))
	for _, p := range t.partitions {
		partitions = append(partitions, p)
	}
	t.mu.RUnlock()

	for _, p := range partitions {
		p.mu.Lock()
		if elem, ok := p.items[key]; ok {
			p.removeLocked(elem)
		}
		p.mu.Unlock()
	}
}

// removeLocked must be called with the partition lock held.
func (p *partition) removeLocked(elem *list.Element) {
	item := elem.Value.(*tierOneItem)
	p.lru.Remove(elem)
	delete(p.items, item.key)
}

// Stats returns the per-strategy hit/miss/eviction counters.
func (t *TierOne) Stats() model.CacheStatsSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(model.CacheStatsSnapshot, len(t.partitions))
	for strategy, p := range t.partitions {
		p.mu.Lock()
		size := int64(p.lru.Len())
		p.mu.Unlock()
		snapshot[strategy] = model.CacheStats{
			Hits:      p.hits.Load(),
			Misses:    p.misses.Load(),
			Evictions: p.evictions.Load(),
			Size:      size,
		}
	}
	return snapshot
}

// engine/cache/ring.go
package cache

import (
	"context"
	"fmt"
	"hash/crc32"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// RemoteNode is one remote cache tier node. The db package provides the Redis
// implementation; tests use in-memory fakes.
type RemoteNode interface {
	Name() string
	Get(ctx context.Context, key string) (string, bool, error)
	MGet(ctx context.Context, keys []string) (map[string]string, error)
	Version(ctx context.Context, verKey string) (int64, error)
	VersionBatch(ctx context.Context, verKeys []string) (map[string]int64, error)
	SetIfVersion(ctx context.Context, key, verKey, payload string, ttl time.Duration, observed int64) (bool, error)
	SetIfVersionBatch(ctx context.Context, writes []model.VersionedWrite) (map[string]bool, error)
	DeleteAndBump(ctx context.Context, key, verKey string, verTTL time.Duration) error
	Ping(ctx context.Context) error
}

type ringNode struct {
	node    RemoteNode
	healthy atomic.Bool
}

// Ring routes cache keys across remote nodes with consistent hashing. Adding
// or removing a node remaps only the keys between it and its predecessor.
// Unhealthy nodes are skipped; their keys route to the next node clockwise
// until the health check passes again.
type Ring struct {
	mu     sync.RWMutex
	nodes  map[string]*ringNode
	hashes []uint32
	owners map[uint32]*ringNode
	vnodes int
}

func NewRing(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = 64
	}
	return &Ring{
		nodes:  make(map[string]*ringNode),
		owners: make(map[uint32]*ringNode),
		vnodes: vnodes,
	}
}

// Add inserts a node into the ring. New nodes start healthy.
func (r *Ring) Add(node RemoteNode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rn := &ringNode{node: node}
	rn.healthy.Store(true)
	r.nodes[node.Name()] = rn

	for i := 0; i < r.vnodes; i++ {
		h := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", node.Name(), i)))
		r.owners[h] = rn
		r.hashes = append(r.hashes, h)
	}
	sort.Slice(r.hashes, func(i, j int) bool { return r.hashes[i] < r.hashes[j] })
}

// Node returns the healthy node owning key, walking clockwise past unhealthy
// owners.
func (r *Ring) Node(key string) (RemoteNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.hashes) == 0 {
		return nil, fmt.Errorf("cache ring empty: %w", aegis_errors.ErrStoreUnavailable)
	}

	h := crc32.ChecksumIEEE([]byte(key))
	start := sort.Search(len(r.hashes), func(i int) bool { return r.hashes[i] >= h })
	for i := 0; i < len(r.hashes); i++ {
		idx := (start + i) % len(r.hashes)
		owner := r.owners[r.hashes[idx]]
		if owner.healthy.Load() {
			return owner.node, nil
		}
	}
	return nil, fmt.Errorf("no healthy cache node for key: %w", aegis_errors.ErrStoreUnavailable)
}

// NodeNames lists the ring members, healthy or not.
func (r *Ring) NodeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkHealthy overrides a node's health, used by tests and the health loop.
func (r *Ring) MarkHealthy(name string, healthy bool) {
	r.mu.RLock()
	rn, ok := r.nodes[name]
	r.mu.RUnlock()
	if ok {
		rn.healthy.Store(healthy)
	}
}

// HealthLoop pings every node on the interval and routes traffic away from
// nodes that fail until they recover.
func (r *Ring) HealthLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.checkAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Ring) checkAll(ctx context.Context) {
	r.mu.RLock()
	nodes := make([]*ringNode, 0, len(r.nodes))
	for _, rn := range r.nodes {
		nodes = append(nodes, rn)
	}
	r.mu.RUnlock()

	for _, rn := range nodes {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rn.node.Ping(pingCtx)
		cancel()

		wasHealthy := rn.healthy.Load()
		nowHealthy := err == nil
		if wasHealthy != nowHealthy {
			rn.healthy.Store(nowHealthy)
			if nowHealthy {
				logger.Info("Cache node recovered", zap.String("node", rn.node.Name()))
			} else {
				logger.Warn("Cache node unhealthy, routing around it",
					zap.String("node", rn.node.Name()), zap.Error(err))
			}
		}
	}
}

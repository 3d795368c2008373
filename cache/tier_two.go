// engine/cache/tier_two.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/metrics"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// TierTwo is the remote cache tier shared across processes, optionally
// sharded through the consistent-hash ring. Every write is versioned so a
// repopulation racing an invalidation can never resurrect stale permissions.
type TierTwo struct {
	ring   *Ring
	ttl    time.Duration
	verTTL time.Duration
}

func NewTierTwo(ring *Ring, ttl, verTTL time.Duration) *TierTwo {
	return &TierTwo{ring: ring, ttl: ttl, verTTL: verTTL}
}

func (t *TierTwo) Get(ctx context.Context, strategy model.Strategy, key string) (model.PermissionSet, bool, error) {
	node, err := t.ring.Node(key)
	if err != nil {
		return model.PermissionSet{}, false, err
	}

	payload, found, err := node.Get(ctx, key)
	if err != nil {
		return model.PermissionSet{}, false, err
	}
	if !found {
		metrics.CacheMisses.WithLabelValues(string(strategy), "l2").Inc()
		return model.PermissionSet{}, false, nil
	}

	var value model.PermissionSet
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		// A corrupt entry is treated as a miss; the cache-aside path
		// will overwrite it.
		logger.Warn("Discarding undecodable tier-two entry", zap.String("key", key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues(string(strategy), "l2").Inc()
		return model.PermissionSet{}, false, nil
	}
	metrics.CacheHits.WithLabelValues(string(strategy), "l2").Inc()
	return value, true, nil
}

// GetBatch fetches the given keys with one multi-get per owning node, never
// one round trip per key.
func (t *TierTwo) GetBatch(ctx context.Context, strategy model.Strategy, keys []string) (map[string]model.PermissionSet, error) {
	byNode := make(map[RemoteNode][]string)
	for _, key := range keys {
		node, err := t.ring.Node(key)
		if err != nil {
			return nil, err
		}
		byNode[node] = append(byNode[node], key)
	}

	found := make(map[string]model.PermissionSet, len(keys))
	for node, nodeKeys := range byNode {
		hits, err := node.MGet(ctx, nodeKeys)
		if err != nil {
			return nil, err
		}
		for key, payload := range hits {
			var value model.PermissionSet
			if err := json.Unmarshal([]byte(payload), &value); err != nil {
				logger.Warn("Discarding undecodable tier-two entry", zap.String("key", key), zap.Error(err))
				continue
			}
			found[key] = value
		}
	}

	for _, key := range keys {
		if _, ok := found[key]; ok {
			metrics.CacheHits.WithLabelValues(string(strategy), "l2").Inc()
		} else {
			metrics.CacheMisses.WithLabelValues(string(strategy), "l2").Inc()
		}
	}
	return found, nil
}

// Version reads the invalidation version a repopulating write must present.
func (t *TierTwo) Version(ctx context.Context, key string) (int64, error) {
	node, err := t.ring.Node(key)
	if err != nil {
		return 0, err
	}
	return node.Version(ctx, model.VersionKey(key))
}

// VersionBatch reads the invalidation versions for many cache keys with one
// round trip per owning node.
func (t *TierTwo) VersionBatch(ctx context.Context, keys []string) (map[string]int64, error) {
	byNode := make(map[RemoteNode][]string)
	for _, key := range keys {
		node, err := t.ring.Node(key)
		if err != nil {
			return nil, err
		}
		byNode[node] = append(byNode[node], key)
	}

	versions := make(map[string]int64, len(keys))
	for node, nodeKeys := range byNode {
		verKeys := make([]string, len(nodeKeys))
		for i, key := range nodeKeys {
			verKeys[i] = model.VersionKey(key)
		}
		got, err := node.VersionBatch(ctx, verKeys)
		if err != nil {
			return nil, err
		}
		for i, key := range nodeKeys {
			versions[key] = got[verKeys[i]]
		}
	}
	return versions, nil
}

// SetIfCurrentBatch commits many resolved values with one pipelined round
// trip per owning node. The returned map reports, per cache key, whether the
// write survived its version check.
func (t *TierTwo) SetIfCurrentBatch(ctx context.Context, values map[string]model.PermissionSet, observed map[string]int64) (map[string]bool, error) {
	byNode := make(map[RemoteNode][]model.VersionedWrite)
	for key, value := range values {
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cache entry %s: %w", key, err)
		}
		node, err := t.ring.Node(key)
		if err != nil {
			return nil, err
		}
		byNode[node] = append(byNode[node], model.VersionedWrite{
			Key:        key,
			VersionKey: model.VersionKey(key),
			Payload:    string(payload),
			TTL:        t.ttl,
			Observed:   observed[key],
		})
	}

	committed := make(map[string]bool, len(values))
	for node, writes := range byNode {
		got, err := node.SetIfVersionBatch(ctx, writes)
		if err != nil {
			return nil, err
		}
		for key, ok := range got {
			committed[key] = ok
		}
	}
	return committed, nil
}

// SetIfCurrent commits the resolved value only if the entry has not been
// invalidated since observed was read. Returns false on a lost race.
func (t *TierTwo) SetIfCurrent(ctx context.Context, key string, value model.PermissionSet, observed int64) (bool, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cache entry %s: %w", key, err)
	}
	node, err := t.ring.Node(key)
	if err != nil {
		return false, err
	}
	return node.SetIfVersion(ctx, key, model.VersionKey(key), string(payload), t.ttl, observed)
}

// Delete removes the entry and bumps its invalidation version atomically.
func (t *TierTwo) Delete(ctx context.Context, key string) error {
	node, err := t.ring.Node(key)
	if err != nil {
		return err
	}
	return node.DeleteAndBump(ctx, key, model.VersionKey(key), t.verTTL)
}

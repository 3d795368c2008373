// engine/invalidation/index.go
package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/db"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

func indexKey(dim model.DimensionType, value string) string {
	return fmt.Sprintf("idx:%s:%s", dim, value)
}

func dimsKey(cacheKey string) string {
	return "idx:dims:" + cacheKey
}

// keyDims is the per-key record of which index sets reference a cache key,
// kept so deregistration never has to scan the index keyspace.
type keyDims struct {
	Pairs []model.DimensionPair `json:"pairs"`
}

// ReverseIndex maps a dimension value to the set of cache keys it affects.
// Invalidating everything for a user is then one membership read plus one
// delete per referenced key, instead of a scan over the full keyspace.
//
// Index sets expire after ttl so a key that leaves both tiers without an
// explicit invalidation is a bounded staleness, not a permanent leak.
type ReverseIndex struct {
	store db.ConfigStore
	ttl   time.Duration
}

func NewReverseIndex(store db.ConfigStore, ttl time.Duration) *ReverseIndex {
	return &ReverseIndex{store: store, ttl: ttl}
}

// Register adds cacheKey to the index set of every relevant dimension:
// the principal, the containing roles, and the scope.
func (i *ReverseIndex) Register(ctx context.Context, cacheKey string, dims model.Dimensions, roleIDs []string) error {
	pairs := dims.Pairs()
	for _, roleID := range roleIDs {
		pairs = append(pairs, model.DimensionPair{Type: model.DimensionRole, Value: roleID})
	}
	if len(pairs) == 0 {
		return nil
	}

	for _, pair := range pairs {
		key := indexKey(pair.Type, pair.Value)
		if err := i.store.SAdd(ctx, key, cacheKey); err != nil {
			return err
		}
		if err := i.store.Expire(ctx, key, i.ttl); err != nil {
			return err
		}
	}

	record, err := json.Marshal(keyDims{Pairs: pairs})
	if err != nil {
		return fmt.Errorf("failed to marshal index record for %s: %w", cacheKey, err)
	}
	return i.store.Set(ctx, dimsKey(cacheKey), string(record), i.ttl)
}

// KeysFor returns every cache key indexed under one dimension value.
func (i *ReverseIndex) KeysFor(ctx context.Context, dim model.DimensionType, value string) ([]string, error) {
	return i.store.SMembers(ctx, indexKey(dim, value))
}

// Deregister removes the given cache keys from every index set referencing
// them, using the per-key dimension records.
func (i *ReverseIndex) Deregister(ctx context.Context, cacheKeys ...string) error {
	for _, cacheKey := range cacheKeys {
		record, found, err := i.store.Get(ctx, dimsKey(cacheKey))
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		var dims keyDims
		if err := json.Unmarshal([]byte(record), &dims); err != nil {
			logger.Warn("Discarding undecodable index record", zap.String("cacheKey", cacheKey), zap.Error(err))
			dims = keyDims{}
		}
		for _, pair := range dims.Pairs {
			if err := i.store.SRem(ctx, indexKey(pair.Type, pair.Value), cacheKey); err != nil {
				return err
			}
		}
		if err := i.store.Del(ctx, dimsKey(cacheKey)); err != nil {
			return err
		}
	}
	return nil
}

// Drop deletes one whole index set after its member keys have been
// invalidated.
func (i *ReverseIndex) Drop(ctx context.Context, dim model.DimensionType, value string) error {
	return i.store.Del(ctx, indexKey(dim, value))
}

// engine/cache/facade.go
package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// Source labels for a resolved permission set.
const (
	SourceTierOne = "l1"
	SourceTierTwo = "l2"
	SourceOrigin  = "origin"
)

// SourceResolver is the consumed interface of the excluded source-of-truth
// layer. Both calls are pure reads with no side effects.
type SourceResolver interface {
	ResolvePermissions(ctx context.Context, principalID, scope, scopeID string) (model.PermissionSet, error)
	ResolvePermissionsBatch(ctx context.Context, principalIDs []string, scope, scopeID string) (map[string]model.PermissionSet, error)
}

// IndexWriter records which reverse-index dimensions a cache key belongs to.
// The invalidation engine implements it.
type IndexWriter interface {
	Register(ctx context.Context, cacheKey string, dims model.Dimensions, roleIDs []string) error
}

// Facade orchestrates the cache-aside lookup: tier one, then tier two, then
// the source of truth, back-filling on the way out. A tier-two outage
// degrades to resolving directly; the cache becomes a no-op, not an outage.
type Facade struct {
	tierOne  *TierOne
	tierTwo  *TierTwo
	resolver SourceResolver
	index    IndexWriter
}

func NewFacade(tierOne *TierOne, tierTwo *TierTwo, resolver SourceResolver, index IndexWriter) *Facade {
	return &Facade{
		tierOne:  tierOne,
		tierTwo:  tierTwo,
		resolver: resolver,
		index:    index,
	}
}

// Resolve returns the permission set for one principal in one scope.
func (f *Facade) Resolve(ctx context.Context, strategy model.Strategy, principalID, scope, scopeID string) (model.PermissionSet, string, error) {
	key := model.BuildCacheKey(strategy, principalID, scope, scopeID)

	if value, ok := f.tierOne.Get(strategy, key); ok {
		return value, SourceTierOne, nil
	}

	degraded := false
	value, found, err := f.tierTwo.Get(ctx, strategy, key)
	if err != nil {
		if !errors.Is(err, aegis_errors.ErrStoreUnavailable) {
			return model.PermissionSet{}, "", err
		}
		logger.Warn("Tier-two unavailable, degrading to direct resolution",
			zap.String("key", key), zap.Error(err))
		degraded = true
	}
	if found {
		f.tierOne.Set(strategy, key, value)
		return value, SourceTierTwo, nil
	}

	var observed int64
	if !degraded {
		observed, err = f.tierTwo.Version(ctx, key)
		if err != nil {
			if !errors.Is(err, aegis_errors.ErrStoreUnavailable) {
				return model.PermissionSet{}, "", err
			}
			degraded = true
		}
	}

	value, err = f.resolver.ResolvePermissions(ctx, principalID, scope, scopeID)
	if err != nil {
		return model.PermissionSet{}, "", err
	}
	if value.ResolvedAt.IsZero() {
		value.ResolvedAt = time.Now()
	}

	if !degraded {
		f.backfill(ctx, strategy, key, principalID, scopeID, value, observed)
	}
	return value, SourceOrigin, nil
}

// ResolveBatch resolves many principals with one tier-one sweep, one tier-two
// multi-get for the remaining misses, and one source-of-truth batch query for
// the remainder.
func (f *Facade) ResolveBatch(ctx context.Context, strategy model.Strategy, principalIDs []string, scope, scopeID string) (map[string]model.PermissionSet, error) {
	keys := make([]string, len(principalIDs))
	keyToPrincipal := make(map[string]string, len(principalIDs))
	for i, id := range principalIDs {
		keys[i] = model.BuildCacheKey(strategy, id, scope, scopeID)
		keyToPrincipal[keys[i]] = id
	}

	results := make(map[string]model.PermissionSet, len(principalIDs))

	l1Hits := f.tierOne.GetMulti(strategy, keys)
	for key, value := range l1Hits {
		results[keyToPrincipal[key]] = value
	}

	var l2Keys []string
	for _, key := range keys {
		if _, ok := l1Hits[key]; !ok {
			l2Keys = append(l2Keys, key)
		}
	}
	if len(l2Keys) == 0 {
		return results, nil
	}

	degraded := false
	l2Hits, err := f.tierTwo.GetBatch(ctx, strategy, l2Keys)
	if err != nil {
		if !errors.Is(err, aegis_errors.ErrStoreUnavailable) {
			return nil, err
		}
		logger.Warn("Tier-two unavailable during batch resolve, degrading", zap.Error(err))
		degraded = true
		l2Hits = map[string]model.PermissionSet{}
	}
	for key, value := range l2Hits {
		f.tierOne.Set(strategy, key, value)
		results[keyToPrincipal[key]] = value
	}

	var missedPrincipals []string
	for _, key := range l2Keys {
		if _, ok := l2Hits[key]; !ok {
			missedPrincipals = append(missedPrincipals, keyToPrincipal[key])
		}
	}
	if len(missedPrincipals) == 0 {
		return results, nil
	}

	// Versions are read before the batch resolution so any invalidation
	// that lands meanwhile makes the corresponding backfill a no-op. One
	// batched read per owning node, never one round trip per principal.
	var observed map[string]int64
	if !degraded {
		missedKeys := make([]string, len(missedPrincipals))
		for i, id := range missedPrincipals {
			missedKeys[i] = model.BuildCacheKey(strategy, id, scope, scopeID)
		}
		observed, err = f.tierTwo.VersionBatch(ctx, missedKeys)
		if err != nil {
			if !errors.Is(err, aegis_errors.ErrStoreUnavailable) {
				return nil, err
			}
			degraded = true
		}
	}

	resolved, err := f.resolver.ResolvePermissionsBatch(ctx, missedPrincipals, scope, scopeID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	toCache := make(map[string]model.PermissionSet, len(resolved))
	for id, value := range resolved {
		if value.ResolvedAt.IsZero() {
			value.ResolvedAt = now
		}
		results[id] = value
		toCache[model.BuildCacheKey(strategy, id, scope, scopeID)] = value
	}
	if !degraded && len(toCache) > 0 {
		f.backfillBatch(ctx, strategy, toCache, observed, keyToPrincipal, scopeID)
	}
	return results, nil
}

// backfillBatch commits the resolved values with one pipelined write per
// owning node. Entries that lost a race against a concurrent invalidation
// are served without being cached.
func (f *Facade) backfillBatch(ctx context.Context, strategy model.Strategy, values map[string]model.PermissionSet, observed map[string]int64, keyToPrincipal map[string]string, scopeID string) {
	committed, err := f.tierTwo.SetIfCurrentBatch(ctx, values, observed)
	if err != nil {
		logger.Warn("Failed to back-fill tier two", zap.Error(err))
		return
	}
	for key, value := range values {
		if !committed[key] {
			logger.Debug("Skipping back-fill, entry invalidated during repopulation",
				zap.String("key", key), zap.Error(aegis_errors.ErrInvalidationRace))
			continue
		}
		f.tierOne.Set(strategy, key, value)
		dims := model.Dimensions{UserID: keyToPrincipal[key], ServerID: scopeID}
		if err := f.index.Register(ctx, key, dims, value.Roles); err != nil {
			logger.Warn("Failed to update reverse index", zap.String("key", key), zap.Error(err))
		}
	}
}

// backfill commits the resolved value to both tiers and updates the reverse
// index. A lost race against a concurrent invalidation means the value is
// served but not cached.
func (f *Facade) backfill(ctx context.Context, strategy model.Strategy, key, principalID, scopeID string, value model.PermissionSet, observed int64) {
	committed, err := f.tierTwo.SetIfCurrent(ctx, key, value, observed)
	if err != nil {
		logger.Warn("Failed to back-fill tier two", zap.String("key", key), zap.Error(err))
		return
	}
	if !committed {
		logger.Debug("Skipping back-fill, entry invalidated during repopulation",
			zap.String("key", key), zap.Error(aegis_errors.ErrInvalidationRace))
		return
	}

	f.tierOne.Set(strategy, key, value)

	dims := model.Dimensions{UserID: principalID, ServerID: scopeID}
	if err := f.index.Register(ctx, key, dims, value.Roles); err != nil {
		logger.Warn("Failed to update reverse index", zap.String("key", key), zap.Error(err))
	}
}

// Stats exposes the per-strategy tier-one counters.
func (f *Facade) Stats() model.CacheStatsSnapshot {
	return f.tierOne.Stats()
}

// DropLocal removes a key from the in-process tier only. The invalidation
// engine uses it when the requested level excludes tier two.
func (f *Facade) DropLocal(key string) {
	f.tierOne.Delete(key)
}

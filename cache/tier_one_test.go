// engine/cache/tier_one_test.go
package cache_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

func TestMain(m *testing.M) {
	logger.InitLogger(os.TempDir())
	defer logger.Sync()
	os.Exit(m.Run())
}

func set(perms ...string) model.PermissionSet {
	return model.PermissionSet{Permissions: perms, ResolvedAt: time.Now()}
}

func TestTierOneStrategyIsolation(t *testing.T) {
	tier := cache.NewTierOne(map[model.Strategy]cache.PartitionConfig{
		model.StrategyUserPermissions: {MaxItems: 2, TTL: time.Minute},
		model.StrategyRolePermissions: {MaxItems: 10, TTL: time.Minute},
	}, cache.PartitionConfig{MaxItems: 10, TTL: time.Minute})

	tier.Set(model.StrategyRolePermissions, "role:a", set("doc.read"))

	// Overflow the user partition. The role partition must keep its entry.
	tier.Set(model.StrategyUserPermissions, "user:1", set("doc.read"))
	tier.Set(model.StrategyUserPermissions, "user:2", set("doc.read"))
	tier.Set(model.StrategyUserPermissions, "user:3", set("doc.read"))

	_, ok := tier.Get(model.StrategyUserPermissions, "user:1")
	assert.False(t, ok, "oldest user entry should have been evicted")
	_, ok = tier.Get(model.StrategyRolePermissions, "role:a")
	assert.True(t, ok, "role partition must not be affected by user partition pressure")
}

func TestTierOneLRUOrder(t *testing.T) {
	tier := cache.NewTierOne(map[model.Strategy]cache.PartitionConfig{
		model.StrategyUserPermissions: {MaxItems: 2, TTL: time.Minute},
	}, cache.PartitionConfig{MaxItems: 2, TTL: time.Minute})

	tier.Set(model.StrategyUserPermissions, "user:1", set("a"))
	tier.Set(model.StrategyUserPermissions, "user:2", set("b"))

	// Touch user:1 so user:2 becomes the eviction candidate.
	_, ok := tier.Get(model.StrategyUserPermissions, "user:1")
	assert.True(t, ok)

	tier.Set(model.StrategyUserPermissions, "user:3", set("c"))

	_, ok = tier.Get(model.StrategyUserPermissions, "user:1")
	assert.True(t, ok)
	_, ok = tier.Get(model.StrategyUserPermissions, "user:2")
	assert.False(t, ok)
}

func TestTierOneTTLExpiry(t *testing.T) {
	tier := cache.NewTierOne(map[model.Strategy]cache.PartitionConfig{
		model.StrategyUserPermissions: {MaxItems: 10, TTL: 10 * time.Millisecond},
	}, cache.PartitionConfig{MaxItems: 10, TTL: time.Minute})

	tier.Set(model.StrategyUserPermissions, "user:1", set("a"))
	_, ok := tier.Get(model.StrategyUserPermissions, "user:1")
	assert.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = tier.Get(model.StrategyUserPermissions, "user:1")
	assert.False(t, ok, "entry must expire after its partition TTL")
}

func TestTierOneDeleteScansAllPartitions(t *testing.T) {
	tier := cache.NewTierOne(nil, cache.PartitionConfig{MaxItems: 10, TTL: time.Minute})

	key := model.BuildCacheKey(model.StrategyUserPermissions, "u1", "server", "s1")
	tier.Set(model.StrategyUserPermissions, key, set("a"))
	tier.Set(model.StrategyRolePermissions, key, set("b"))

	tier.Delete(key)

	_, ok := tier.Get(model.StrategyUserPermissions, key)
	assert.False(t, ok)
	_, ok = tier.Get(model.StrategyRolePermissions, key)
	assert.False(t, ok)
}

func TestTierOneStats(t *testing.T) {
	tier := cache.NewTierOne(map[model.Strategy]cache.PartitionConfig{
		model.StrategyUserPermissions: {MaxItems: 1, TTL: time.Minute},
	}, cache.PartitionConfig{MaxItems: 1, TTL: time.Minute})

	tier.Set(model.StrategyUserPermissions, "user:1", set("a"))
	tier.Get(model.StrategyUserPermissions, "user:1")
	tier.Get(model.StrategyUserPermissions, "user:missing")
	tier.Set(model.StrategyUserPermissions, "user:2", set("b"))

	stats := tier.Stats()[model.StrategyUserPermissions]
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
}

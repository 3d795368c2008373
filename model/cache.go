// engine/model/cache.go
package model

import (
	"fmt"
	"time"
)

// Strategy identifies one logical cache partition. Capacity and TTL are
// configured per strategy, never globally.
type Strategy string

const (
	StrategyUserPermissions Strategy = "user-permissions"
	StrategyRolePermissions Strategy = "role-permissions"
	StrategyInheritanceTree Strategy = "inheritance-tree"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyUserPermissions, StrategyRolePermissions, StrategyInheritanceTree:
		return true
	}
	return false
}

// PermissionSet is a resolved permission result for one principal in one scope.
// Roles carries the containing role ids so the reverse index can be updated for
// every relevant dimension when the set is cached.
type PermissionSet struct {
	Permissions []string  `json:"permissions"`
	Roles       []string  `json:"roles"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

func (ps PermissionSet) Has(permission string) bool {
	for _, p := range ps.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// BuildCacheKey fingerprints principal+scope+strategy into the cache key used
// by both tiers and by the reverse indexes.
func BuildCacheKey(strategy Strategy, principalID, scope, scopeID string) string {
	return fmt.Sprintf("perm:%s:%s:%s:%s", strategy, principalID, scope, scopeID)
}

// VersionKey is the monotonically increasing invalidation version for a cache
// key. The remote tier routes it by the cache key so it always lives on the
// same node as the entry, letting a versioned write commit in one round trip.
func VersionKey(cacheKey string) string {
	return "ver:" + cacheKey
}

// VersionedWrite is one entry of a version-fenced batch commit to a remote
// cache node.
type VersionedWrite struct {
	Key        string
	VersionKey string
	Payload    string
	TTL        time.Duration
	Observed   int64
}

// CacheStats holds per-strategy hit/miss/eviction counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int64 `json:"size"`
}

// CacheStatsSnapshot maps strategy to its counters.
type CacheStatsSnapshot map[Strategy]CacheStats

// engine/db/node.go
package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// setIfVersionScript commits a repopulated cache entry only when the key's
// invalidation version still matches the one observed before the
// source-of-truth read. An invalidation bumps the version, so a stale write
// is discarded instead of resurrecting revoked permissions.
var setIfVersionScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
if current ~= tonumber(ARGV[2]) then
    return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// deleteAndBumpScript removes a cache entry and advances its invalidation
// version in the same round trip, closing the window where a concurrent
// repopulation could commit against the old version.
var deleteAndBumpScript = redis.NewScript(`
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return redis.call('DEL', KEYS[1])
`)

// RedisNode is one remote cache tier node. With sharding enabled each node is
// a separate Redis instance addressed through the consistent-hash ring.
type RedisNode struct {
	name   string
	client *redis.Client
}

func NewRedisNode(name string, client *redis.Client) *RedisNode {
	return &RedisNode{name: name, client: client}
}

func (n *RedisNode) Name() string {
	return n.name
}

func (n *RedisNode) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := n.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("node "+n.name+" get "+key, err)
	}
	return val, true, nil
}

// MGet fetches many keys in one round trip and returns only the hits.
func (n *RedisNode) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	values, err := n.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeErr("node "+n.name+" mget", err)
	}
	hits := make(map[string]string, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			hits[keys[i]] = s
		}
	}
	return hits, nil
}

// VersionBatch reads the invalidation versions for many keys in one round
// trip. Keys without a version report 0, the same as Version.
func (n *RedisNode) VersionBatch(ctx context.Context, verKeys []string) (map[string]int64, error) {
	if len(verKeys) == 0 {
		return map[string]int64{}, nil
	}
	values, err := n.client.MGet(ctx, verKeys...).Result()
	if err != nil {
		return nil, storeErr("node "+n.name+" mget versions", err)
	}
	versions := make(map[string]int64, len(verKeys))
	for i, v := range values {
		versions[verKeys[i]] = 0
		s, ok := v.(string)
		if !ok {
			continue
		}
		ver, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("node %s: corrupt version at %s: %w", n.name, verKeys[i], err)
		}
		versions[verKeys[i]] = ver
	}
	return versions, nil
}

// Version reads the current invalidation version for a cache key.
func (n *RedisNode) Version(ctx context.Context, verKey string) (int64, error) {
	val, err := n.client.Get(ctx, verKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("node "+n.name+" get "+verKey, err)
	}
	return val, nil
}

// SetIfVersion writes the entry only if the invalidation version is still the
// observed one. Returns false when a concurrent invalidation won the race.
func (n *RedisNode) SetIfVersion(ctx context.Context, key, verKey, payload string, ttl time.Duration, observed int64) (bool, error) {
	res, err := setIfVersionScript.Run(ctx, n.client,
		[]string{key, verKey}, payload, observed, ttl.Milliseconds()).Int()
	if err != nil {
		return false, storeErr("node "+n.name+" setifversion "+key, err)
	}
	return res == 1, nil
}

// SetIfVersionBatch pipelines many version-fenced commits into one round
// trip. Fencing semantics per entry match SetIfVersion.
func (n *RedisNode) SetIfVersionBatch(ctx context.Context, writes []model.VersionedWrite) (map[string]bool, error) {
	if len(writes) == 0 {
		return map[string]bool{}, nil
	}
	cmds := make([]*redis.Cmd, len(writes))
	_, err := n.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, w := range writes {
			cmds[i] = setIfVersionScript.Run(ctx, pipe,
				[]string{w.Key, w.VersionKey}, w.Payload, w.Observed, w.TTL.Milliseconds())
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("node "+n.name+" setifversion batch", err)
	}
	committed := make(map[string]bool, len(writes))
	for i, cmd := range cmds {
		res, err := cmd.Int()
		if err != nil {
			return nil, storeErr("node "+n.name+" setifversion "+writes[i].Key, err)
		}
		committed[writes[i].Key] = res == 1
	}
	return committed, nil
}

// DeleteAndBump removes the entry and advances its invalidation version in
// one atomic round trip. verTTL bounds how long a version key for an absent
// entry is retained.
func (n *RedisNode) DeleteAndBump(ctx context.Context, key, verKey string, verTTL time.Duration) error {
	err := deleteAndBumpScript.Run(ctx, n.client,
		[]string{key, verKey}, verTTL.Milliseconds()).Err()
	if err != nil {
		return storeErr("node "+n.name+" deleteandbump "+key, err)
	}
	return nil
}

func (n *RedisNode) Ping(ctx context.Context) error {
	if err := n.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("node %s: %s: %w", n.name, err, aegis_errors.ErrStoreUnavailable)
	}
	return nil
}

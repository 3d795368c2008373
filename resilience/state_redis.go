// engine/resilience/state_redis.go
package resilience

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

// Every transition is one script execution: read, check and write happen in
// a single round trip on the store, so concurrent callers across processes
// observe a serialized state machine.

var breakerCanExecuteScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then state = 'CLOSED' end
local now = tonumber(ARGV[1])
if state == 'CLOSED' then
    return {1, 'CLOSED'}
end
if state == 'OPEN' then
    local last = tonumber(redis.call('HGET', KEYS[1], 'last_failure_ms') or '0')
    if now - last >= tonumber(ARGV[2]) then
        redis.call('HSET', KEYS[1], 'state', 'HALF_OPEN', 'probes', 1)
        return {1, 'HALF_OPEN'}
    end
    return {0, 'OPEN'}
end
local probes = tonumber(redis.call('HGET', KEYS[1], 'probes') or '0')
if probes < tonumber(ARGV[3]) then
    redis.call('HSET', KEYS[1], 'probes', probes + 1)
    return {1, 'HALF_OPEN'}
end
return {0, 'HALF_OPEN'}
`)

var breakerRecordSuccessScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then state = 'CLOSED' end
if state == 'HALF_OPEN' then
    redis.call('HSET', KEYS[1], 'state', 'CLOSED', 'failures', 0, 'probes', 0)
    return 'CLOSED'
end
if state == 'CLOSED' then
    redis.call('HSET', KEYS[1], 'failures', 0)
end
return state
`)

var breakerRecordFailureScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then state = 'CLOSED' end
local now = tonumber(ARGV[1])
if state == 'HALF_OPEN' then
    redis.call('HSET', KEYS[1], 'state', 'OPEN', 'last_failure_ms', now, 'probes', 0)
    return 'OPEN'
end
local failures = redis.call('HINCRBY', KEYS[1], 'failures', 1)
redis.call('HSET', KEYS[1], 'last_failure_ms', now)
if failures >= tonumber(ARGV[2]) then
    redis.call('HSET', KEYS[1], 'state', 'OPEN')
    return 'OPEN'
end
redis.call('HSET', KEYS[1], 'state', 'CLOSED')
return 'CLOSED'
`)

var tokenBucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens') or tostring(burst))
local ts = tonumber(redis.call('HGET', KEYS[1], 'ts') or ARGV[1])
local elapsed = now - ts
if elapsed < 0 then elapsed = 0 end
tokens = tokens + (elapsed / 1000.0) * rate
if tokens > burst then tokens = burst end
local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], math.ceil(burst / rate * 2000))
return allowed
`)

var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
    return 0
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return 1
`)

var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if count > tonumber(ARGV[1]) then
    return 0
end
return 1
`)

var bulkheadAcquireScript = redis.NewScript(`
local inflight = redis.call('INCR', KEYS[1])
if inflight == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if inflight > tonumber(ARGV[1]) then
    redis.call('DECR', KEYS[1])
    return 0
end
return 1
`)

var bulkheadReleaseScript = redis.NewScript(`
local inflight = tonumber(redis.call('GET', KEYS[1]) or '0')
if inflight > 0 then
    redis.call('DECR', KEYS[1])
end
return 1
`)

// bulkheadCounterTTL caps how long an in-flight counter can survive a crashed
// holder before it resets.
const bulkheadCounterTTL = 5 * time.Minute

// RedisStateStore is the shared StateStore. All processes see the same
// protection state; each holds only this lightweight handle.
type RedisStateStore struct {
	client *redis.Client
}

var _ StateStore = &RedisStateStore{}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func stateErr(op string, err error) error {
	return fmt.Errorf("%s: %s: %w", op, err, aegis_errors.ErrStoreUnavailable)
}

func (s *RedisStateStore) BreakerCanExecute(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (bool, model.BreakerState, error) {
	res, err := breakerCanExecuteScript.Run(ctx, s.client,
		[]string{breakerStateKey(name)},
		now.UnixMilli(), cfg.RecoveryTimeout.Milliseconds(), cfg.HalfOpenMaxCalls).Slice()
	if err != nil {
		return false, "", stateErr("breaker can-execute "+name, err)
	}
	if len(res) != 2 {
		return false, "", fmt.Errorf("breaker can-execute %s: unexpected script reply", name)
	}
	allowed, _ := res[0].(int64)
	state, _ := res[1].(string)
	return allowed == 1, model.BreakerState(state), nil
}

func (s *RedisStateStore) BreakerRecordSuccess(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (model.BreakerState, error) {
	state, err := breakerRecordSuccessScript.Run(ctx, s.client,
		[]string{breakerStateKey(name)}).Text()
	if err != nil {
		return "", stateErr("breaker record-success "+name, err)
	}
	return model.BreakerState(state), nil
}

func (s *RedisStateStore) BreakerRecordFailure(ctx context.Context, name string, cfg model.BreakerConfig, now time.Time) (model.BreakerState, error) {
	state, err := breakerRecordFailureScript.Run(ctx, s.client,
		[]string{breakerStateKey(name)},
		now.UnixMilli(), cfg.FailureThreshold).Text()
	if err != nil {
		return "", stateErr("breaker record-failure "+name, err)
	}
	return model.BreakerState(state), nil
}

func (s *RedisStateStore) BreakerSnapshot(ctx context.Context, name string) (BreakerSnapshot, error) {
	fields, err := s.client.HGetAll(ctx, breakerStateKey(name)).Result()
	if err != nil {
		return BreakerSnapshot{}, stateErr("breaker snapshot "+name, err)
	}
	snap := BreakerSnapshot{State: model.BreakerClosed}
	if state, ok := fields["state"]; ok && state != "" {
		snap.State = model.BreakerState(state)
	}
	if failures, ok := fields["failures"]; ok {
		snap.Failures, _ = strconv.Atoi(failures)
	}
	if probes, ok := fields["probes"]; ok {
		snap.ProbesInFlight, _ = strconv.Atoi(probes)
	}
	if lastMs, ok := fields["last_failure_ms"]; ok {
		if ms, err := strconv.ParseInt(lastMs, 10, 64); err == nil && ms > 0 {
			snap.LastFailureAt = time.UnixMilli(ms)
		}
	}
	return snap, nil
}

func (s *RedisStateStore) TokenBucketAllow(ctx context.Context, key string, tokensPerSecond float64, burst int, now time.Time) (bool, error) {
	allowed, err := tokenBucketScript.Run(ctx, s.client,
		[]string{key}, now.UnixMilli(), tokensPerSecond, burst).Int()
	if err != nil {
		return false, stateErr("token bucket "+key, err)
	}
	return allowed == 1, nil
}

func (s *RedisStateStore) SlidingWindowAllow(ctx context.Context, key string, maxRequests int, window time.Duration, now time.Time) (bool, error) {
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.New().String())
	allowed, err := slidingWindowScript.Run(ctx, s.client,
		[]string{key}, now.UnixMilli(), window.Milliseconds(), maxRequests, member).Int()
	if err != nil {
		return false, stateErr("sliding window "+key, err)
	}
	return allowed == 1, nil
}

func (s *RedisStateStore) FixedWindowAllow(ctx context.Context, key string, maxRequests int, window time.Duration, now time.Time) (bool, error) {
	bucket := now.UnixMilli() / window.Milliseconds()
	bucketKey := fmt.Sprintf("%s:%d", key, bucket)
	allowed, err := fixedWindowScript.Run(ctx, s.client,
		[]string{bucketKey}, maxRequests, window.Milliseconds()).Int()
	if err != nil {
		return false, stateErr("fixed window "+key, err)
	}
	return allowed == 1, nil
}

func (s *RedisStateStore) BulkheadAcquire(ctx context.Context, key string, capacity int) (bool, error) {
	allowed, err := bulkheadAcquireScript.Run(ctx, s.client,
		[]string{key}, capacity, bulkheadCounterTTL.Milliseconds()).Int()
	if err != nil {
		return false, stateErr("bulkhead acquire "+key, err)
	}
	return allowed == 1, nil
}

func (s *RedisStateStore) BulkheadRelease(ctx context.Context, key string) error {
	if err := bulkheadReleaseScript.Run(ctx, s.client, []string{key}).Err(); err != nil {
		return stateErr("bulkhead release "+key, err)
	}
	return nil
}

func (s *RedisStateStore) BulkheadInFlight(ctx context.Context, key string) (int, error) {
	val, err := s.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, stateErr("bulkhead in-flight "+key, err)
	}
	return val, nil
}

// engine/invalidation/engine_test.go
package invalidation_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/invalidation"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	mock_store "github.com/dev-mohitbeniwal/aegis/engine/test/mock"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

func TestMain(m *testing.M) {
	logger.InitLogger(os.TempDir())
	defer logger.Sync()
	os.Exit(m.Run())
}

type engineFixture struct {
	engine  *invalidation.Engine
	tierOne *cache.TierOne
	tierTwo *cache.TierTwo
	queue   *invalidation.DelayedQueue
	node    *mock_store.FakeNode
	store   *mock_store.FakeStore
	bus     *util.EventBus
}

func newEngineFixture() *engineFixture {
	tierOne := cache.NewTierOne(nil, cache.PartitionConfig{MaxItems: 100, TTL: time.Minute})
	node := mock_store.NewFakeNode("node-a")
	ring := cache.NewRing(64)
	ring.Add(node)
	tierTwo := cache.NewTierTwo(ring, time.Minute, time.Hour)
	store := mock_store.NewFakeStore()
	index := invalidation.NewReverseIndex(store, time.Hour)
	queue := invalidation.NewDelayedQueue(store)
	bus := util.NewEventBus()

	return &engineFixture{
		engine:  invalidation.NewEngine(tierOne, tierTwo, index, queue, bus, 2, time.Millisecond),
		tierOne: tierOne,
		tierTwo: tierTwo,
		queue:   queue,
		node:    node,
		store:   store,
		bus:     bus,
	}
}

// seed places a resolved entry in both tiers and registers its indexes, the
// way a facade back-fill would.
func (f *engineFixture) seed(t *testing.T, principalID string, roles ...string) string {
	t.Helper()
	ctx := context.Background()
	key := model.BuildCacheKey(model.StrategyUserPermissions, principalID, "server", "s1")
	value := model.PermissionSet{Permissions: []string{"doc.read"}, Roles: roles, ResolvedAt: time.Now()}

	committed, err := f.tierTwo.SetIfCurrent(ctx, key, value, 0)
	require.NoError(t, err)
	require.True(t, committed)
	f.tierOne.Set(model.StrategyUserPermissions, key, value)

	index := invalidation.NewReverseIndex(f.store, time.Hour)
	dims := model.Dimensions{UserID: principalID, ServerID: "s1"}
	require.NoError(t, index.Register(ctx, key, dims, roles))
	return key
}

func TestInvalidateTierOneOnlyLeavesTierTwo(t *testing.T) {
	f := newEngineFixture()
	key := f.seed(t, "u1")

	err := f.engine.Invalidate(context.Background(), key, "role membership changed",
		model.Dimensions{UserID: "u1"}, model.CacheLevelL1)
	require.NoError(t, err)

	_, ok := f.tierOne.Get(model.StrategyUserPermissions, key)
	assert.False(t, ok, "first tier must drop the key")
	assert.True(t, f.node.Has(key), "second tier must be untouched at level l1")
}

func TestInvalidateAllTiersBumpsVersion(t *testing.T) {
	f := newEngineFixture()
	key := f.seed(t, "u1")
	ctx := context.Background()

	err := f.engine.Invalidate(ctx, key, "permission revoked",
		model.Dimensions{UserID: "u1"}, model.CacheLevelAll)
	require.NoError(t, err)

	_, ok := f.tierOne.Get(model.StrategyUserPermissions, key)
	assert.False(t, ok)
	assert.False(t, f.node.Has(key))

	// A back-fill that observed the pre-invalidation version must lose.
	committed, err := f.tierTwo.SetIfCurrent(ctx, key, model.PermissionSet{}, 0)
	require.NoError(t, err)
	assert.False(t, committed, "the version bump must fence stale back-fills")

	// The reverse index no longer references the key.
	members, err := f.store.SMembers(ctx, "idx:user:u1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestInvalidateRejectsUnknownLevel(t *testing.T) {
	f := newEngineFixture()
	err := f.engine.Invalidate(context.Background(), "perm:x", "r", model.Dimensions{}, model.CacheLevel("l9"))
	assert.Error(t, err)
}

func TestInvalidateByDimensionIsComplete(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	k1 := f.seed(t, "u1", "r1")
	other := f.seed(t, "u2")

	n, err := f.engine.InvalidateByDimension(ctx, model.DimensionUser, "u1", "user deactivated")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "u1 owns one cache key in this fixture")

	assert.False(t, f.node.Has(k1))
	assert.True(t, f.node.Has(other), "other principals must be untouched")

	members, err := f.store.SMembers(ctx, "idx:user:u1")
	require.NoError(t, err)
	assert.Empty(t, members, "no orphaned index entries may remain")

	// Role indexes referencing the invalidated key are cleaned too.
	members, err = f.store.SMembers(ctx, "idx:role:r1")
	require.NoError(t, err)
	assert.NotContains(t, members, k1)
}

func TestInvalidateByDimensionRetriesTransientFailures(t *testing.T) {
	f := newEngineFixture()
	key := f.seed(t, "u1")

	f.store.FailNext = 1
	n, err := f.engine.InvalidateByDimension(context.Background(), model.DimensionUser, "u1", "retry probe")
	require.NoError(t, err, "a single transient store failure must be retried away")
	assert.Equal(t, 1, n)
	assert.False(t, f.node.Has(key))
}

func TestEnqueueFillsDefaults(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	err := f.engine.Enqueue(ctx, model.InvalidationTask{
		Reason:     "role definition changed",
		Dimensions: model.Dimensions{RoleID: "r1"},
	})
	require.NoError(t, err)

	tasks, err := f.queue.PopOldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.NotEmpty(t, tasks[0].ID)
	assert.Equal(t, model.CacheLevelAll, tasks[0].Level)
	assert.False(t, tasks[0].EnqueuedAt.IsZero())
}

func TestEnqueueSurfacesQueueFailure(t *testing.T) {
	f := newEngineFixture()
	escalated := make(chan util.Event, 1)
	f.bus.Subscribe(invalidation.EventEscalated, func(ctx context.Context, ev util.Event) error {
		escalated <- ev
		return nil
	})

	f.store.FailNext = 10
	err := f.engine.Enqueue(context.Background(), model.InvalidationTask{
		Reason:     "bulk change",
		Dimensions: model.Dimensions{RoleID: "r1"},
	})
	assert.Error(t, err, "the caller must see the failure, the task is never silently dropped")

	select {
	case ev := <-escalated:
		task, ok := ev.Payload.(model.InvalidationTask)
		require.True(t, ok)
		assert.Equal(t, "bulk change", task.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected an escalation event")
	}
}

func TestProcessBatchGroupsByDimension(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	key := f.seed(t, "u1", "r1")

	// Three queued tasks for the same role collapse into one index lookup.
	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.Enqueue(ctx, model.InvalidationTask{
			Reason:     "role definition changed",
			Dimensions: model.Dimensions{RoleID: "r1"},
		}))
	}

	before := f.store.Calls["SMembers"]
	processed, err := f.engine.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed, "one indexed key is affected")
	assert.Equal(t, 1, f.store.Calls["SMembers"]-before, "a coalesced group costs one membership read")
	assert.False(t, f.node.Has(key))

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	f := newEngineFixture()
	processed, err := f.engine.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestCleanupExpiredCoInvalidatesIndexes(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	key := f.seed(t, "u1")

	stale := model.InvalidationTask{
		ID:         "stale-task",
		Reason:     "old bulk change",
		Level:      model.CacheLevelAll,
		EnqueuedAt: time.Now().Add(-2 * time.Hour),
		Dimensions: model.Dimensions{UserID: "u1"},
	}
	require.NoError(t, f.queue.Enqueue(ctx, stale))

	cleaned, err := f.engine.CleanupExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	assert.False(t, f.node.Has(key), "expired tasks still invalidate their targets")
	members, err := f.store.SMembers(ctx, "idx:user:u1")
	require.NoError(t, err)
	assert.Empty(t, members, "cleanup must not leave orphaned index entries")

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestTierTwoOutageEscalatesToQueue(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	key := f.seed(t, "u1")
	escalated := make(chan util.Event, 1)
	f.bus.Subscribe(invalidation.EventEscalated, func(ctx context.Context, ev util.Event) error {
		escalated <- ev
		return nil
	})

	f.node.Down = true
	err := f.engine.Invalidate(ctx, key, "permission revoked",
		model.Dimensions{UserID: "u1"}, model.CacheLevelAll)
	require.NoError(t, err, "an escalated invalidation is parked, not failed")

	select {
	case <-escalated:
	case <-time.After(time.Second):
		t.Fatal("expected an escalation event")
	}

	tasks, err := f.queue.PopOldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, key, tasks[0].CacheKey)
	assert.Equal(t, model.CacheLevelAll, tasks[0].Level)
}

func TestInvalidateTierOneOnlyKeepsIndexTracking(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	key := f.seed(t, "u1")

	err := f.engine.Invalidate(ctx, key, "local refresh",
		model.Dimensions{UserID: "u1"}, model.CacheLevelL1)
	require.NoError(t, err)

	// The entry still lives in tier two, so the reverse index must keep
	// tracking it or a later user-level invalidation cannot reach it.
	members, err := f.store.SMembers(ctx, "idx:user:u1")
	require.NoError(t, err)
	assert.Contains(t, members, key)

	n, err := f.engine.InvalidateByDimension(ctx, model.DimensionUser, "u1", "membership changed")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, f.node.Has(key), "the user-level invalidation must still find the entry")
}

func TestInvalidateByDimensionRejectsUnknownType(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.InvalidateByDimension(context.Background(),
		model.DimensionType("tenant"), "t1", "typo")
	assert.ErrorIs(t, err, aegis_errors.ErrUnknownDimension)
}

func TestProcessBatchReEnqueuesFailedGroup(t *testing.T) {
	ctx := context.Background()
	tierOne := cache.NewTierOne(nil, cache.PartitionConfig{MaxItems: 100, TTL: time.Minute})
	node := mock_store.NewFakeNode("node-a")
	ring := cache.NewRing(64)
	ring.Add(node)
	tierTwo := cache.NewTierTwo(ring, time.Minute, time.Hour)
	indexStore := mock_store.NewFakeStore()
	queueStore := mock_store.NewFakeStore()
	index := invalidation.NewReverseIndex(indexStore, time.Hour)
	queue := invalidation.NewDelayedQueue(queueStore)
	bus := util.NewEventBus()
	engine := invalidation.NewEngine(tierOne, tierTwo, index, queue, bus, 2, time.Millisecond)

	escalated := make(chan util.Event, 1)
	bus.Subscribe(invalidation.EventEscalated, func(ctx context.Context, ev util.Event) error {
		escalated <- ev
		return nil
	})

	enqueuedAt := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	require.NoError(t, queue.Enqueue(ctx, model.InvalidationTask{
		ID:         "task-1",
		Reason:     "role change",
		Level:      model.CacheLevelAll,
		EnqueuedAt: enqueuedAt,
		Dimensions: model.Dimensions{RoleID: "r1"},
	}))

	// Every index lookup attempt fails, so the group cannot be processed.
	indexStore.FailNext = 10
	processed, err := engine.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, processed)

	select {
	case <-escalated:
	case <-time.After(time.Second):
		t.Fatal("expected an escalation event")
	}

	// The popped task is parked back on the queue with its original
	// enqueue time, never dropped.
	depth, err := queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	tasks, err := queue.PopOldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "task-1", tasks[0].ID)
	assert.Equal(t, enqueuedAt.Unix(), tasks[0].EnqueuedAt.Unix())
}

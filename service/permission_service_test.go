// engine/service/permission_service_test.go
package service_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/aegis/engine/audit"
	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	"github.com/dev-mohitbeniwal/aegis/engine/config"
	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/invalidation"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
	"github.com/dev-mohitbeniwal/aegis/engine/service"
	mock_store "github.com/dev-mohitbeniwal/aegis/engine/test/mock"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

func TestMain(m *testing.M) {
	if err := config.InitConfig(); err != nil {
		panic(err)
	}
	logger.InitLogger(os.TempDir())
	defer logger.Sync()
	os.Exit(m.Run())
}

type serviceFixture struct {
	svc      service.IPermissionService
	resolver *mock_store.FakeResolver
	node     *mock_store.FakeNode
	store    *mock_store.FakeStore
	audit    *mock_store.MockAuditService
	queue    *invalidation.DelayedQueue
}

// newServiceFixture wires the full check path over in-memory fakes: the real
// facade, invalidation engine and protection primitives, with the remote
// stores and the graph resolver replaced.
func newServiceFixture() *serviceFixture {
	tierOne := cache.NewTierOne(nil, cache.PartitionConfig{MaxItems: 100, TTL: time.Minute})
	node := mock_store.NewFakeNode("node-a")
	ring := cache.NewRing(64)
	ring.Add(node)
	tierTwo := cache.NewTierTwo(ring, time.Minute, time.Hour)

	store := mock_store.NewFakeStore()
	index := invalidation.NewReverseIndex(store, time.Hour)
	queue := invalidation.NewDelayedQueue(store)
	bus := util.NewEventBus()
	engine := invalidation.NewEngine(tierOne, tierTwo, index, queue, bus, 2, time.Millisecond)

	resolver := mock_store.NewFakeResolver()
	facade := cache.NewFacade(tierOne, tierTwo, resolver, index)

	controller := resilience.NewController(store, time.Minute)
	registry := resilience.NewRegistry(controller, resilience.NewMemoryStateStore())

	auditService := &mock_store.MockAuditService{}
	auditService.On("LogEvent", tmock.Anything, tmock.Anything).Return(nil)

	svc := service.NewPermissionService(facade, engine, registry, controller,
		auditService, util.NewValidationUtil(), bus)

	return &serviceFixture{
		svc:      svc,
		resolver: resolver,
		node:     node,
		store:    store,
		audit:    auditService,
		queue:    queue,
	}
}

func checkReq(principalID string) model.CheckRequest {
	return model.CheckRequest{
		PrincipalID: principalID,
		Scope:       "server",
		ScopeID:     "s1",
		Permission:  "doc.read",
		ServerID:    "s1",
		Origin:      "10.0.0.1",
	}
}

func TestCheckPermissionAllowedAndCached(t *testing.T) {
	f := newServiceFixture()
	f.resolver.Grant("u1", []string{"r1"}, "doc.read")
	ctx := context.Background()

	decision, err := f.svc.CheckPermission(ctx, checkReq("u1"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, cache.SourceOrigin, decision.Source)
	assert.Contains(t, decision.Roles, "r1")

	decision, err = f.svc.CheckPermission(ctx, checkReq("u1"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, cache.SourceTierOne, decision.Source)
	assert.Equal(t, 1, f.resolver.Calls, "a repeat check must not hit the source of truth")
}

func TestCheckPermissionDenied(t *testing.T) {
	f := newServiceFixture()
	f.resolver.Grant("u1", nil, "doc.write")

	decision, err := f.svc.CheckPermission(context.Background(), checkReq("u1"))
	require.NoError(t, err, "a denial is an answer, not an error")
	assert.False(t, decision.Allowed)

	f.audit.AssertCalled(t, "LogEvent", tmock.Anything, tmock.MatchedBy(func(ev audit.ProtectionEvent) bool {
		return ev.Kind == audit.KindCheckDenied && ev.PrincipalID == "u1"
	}))
}

func TestCheckPermissionValidatesRequest(t *testing.T) {
	f := newServiceFixture()

	_, err := f.svc.CheckPermission(context.Background(), model.CheckRequest{Scope: "server", Permission: "doc.read"})
	assert.Error(t, err)
	assert.Zero(t, f.resolver.Calls)
}

func TestCheckPermissionBreakerOpensOnResolverFailure(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	_, err := f.svc.ConfigureCircuitBreaker(ctx, model.BreakerConfig{
		Name:             "permission-check",
		Enabled:          true,
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		HalfOpenMaxCalls: 1,
	})
	require.NoError(t, err)

	f.resolver.Fail = true
	_, err = f.svc.CheckPermission(ctx, checkReq("u1"))
	assert.ErrorIs(t, err, aegis_errors.ErrResolverFailure)

	// The resolver failure opened the breaker: the next call fails fast
	// without reaching the resolver.
	calls := f.resolver.Calls
	_, err = f.svc.CheckPermission(ctx, checkReq("u1"))
	assert.ErrorIs(t, err, aegis_errors.ErrBreakerOpen)
	assert.Equal(t, calls, f.resolver.Calls)
}

func TestBatchCheckPermission(t *testing.T) {
	f := newServiceFixture()
	f.resolver.Grant("u1", nil, "doc.read")
	f.resolver.Grant("u2", nil, "doc.write")

	batch, err := f.svc.BatchCheckPermission(context.Background(), model.BatchCheckRequest{
		PrincipalIDs: []string{"u1", "u2"},
		Scope:        "server",
		ScopeID:      "s1",
		Permission:   "doc.read",
		ServerID:     "s1",
		Origin:       "10.0.0.1",
	})
	require.NoError(t, err)
	require.Len(t, batch.Results, 2)
	assert.True(t, batch.Results["u1"].Allowed)
	assert.False(t, batch.Results["u2"].Allowed)
	assert.Equal(t, 1, f.resolver.BatchCalls, "the whole batch costs one source query")
}

func TestInvalidateForUserIsSynchronousByDefault(t *testing.T) {
	f := newServiceFixture()
	f.resolver.Grant("u1", nil, "doc.read")
	ctx := context.Background()

	_, err := f.svc.CheckPermission(ctx, checkReq("u1"))
	require.NoError(t, err)

	count, err := f.svc.InvalidateForUser(ctx, "u1", "user deactivated", model.CacheLevelAll, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The drop is visible immediately: the next check resolves fresh.
	decision, err := f.svc.CheckPermission(ctx, checkReq("u1"))
	require.NoError(t, err)
	assert.Equal(t, cache.SourceOrigin, decision.Source)
	assert.Equal(t, 2, f.resolver.Calls)
}

func TestInvalidateForRoleIsDelayedByDefault(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	count, err := f.svc.InvalidateForRole(ctx, "r1", "role definition changed", "")
	require.NoError(t, err)
	assert.Zero(t, count, "delayed invalidation reports no immediate drops")

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestInvalidateForRoleSyncOverride(t *testing.T) {
	f := newServiceFixture()
	f.resolver.Grant("u1", []string{"r1"}, "doc.read")
	ctx := context.Background()

	_, err := f.svc.CheckPermission(ctx, checkReq("u1"))
	require.NoError(t, err)

	count, err := f.svc.InvalidateForRole(ctx, "r1", "role revoked", model.InvalidationSync)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth, "sync override must not touch the queue")
}

func TestInvalidateKeyRejectsBadLevel(t *testing.T) {
	f := newServiceFixture()
	err := f.svc.InvalidateKey(context.Background(), "perm:x", "r", model.CacheLevel("l9"), "")
	assert.ErrorIs(t, err, aegis_errors.ErrInvalidCacheLevel)
}

func TestConfigureRateLimiterIsAudited(t *testing.T) {
	f := newServiceFixture()
	cfg := model.DefaultLimiterConfig("permission-check")
	cfg.Dimensions[model.DimUser] = model.DimensionQuota{MaxRequests: 10, Window: time.Minute}

	updated, err := f.svc.ConfigureRateLimiter(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	f.audit.AssertCalled(t, "LogEvent", tmock.Anything, tmock.Anything)
}

func TestResilienceSnapshotCoversCheckPrimitives(t *testing.T) {
	f := newServiceFixture()
	f.resolver.Grant("u1", nil, "doc.read")
	ctx := context.Background()

	_, err := f.svc.CheckPermission(ctx, checkReq("u1"))
	require.NoError(t, err)

	snap := f.svc.ResilienceSnapshot(ctx)
	require.Len(t, snap.Breakers, 1)
	assert.Equal(t, "permission-check", snap.Breakers[0].Name)
	assert.Equal(t, model.BreakerClosed, snap.Breakers[0].State)
	require.Len(t, snap.Bulkheads, 1)
	assert.Zero(t, snap.Bulkheads[0].InFlight, "the check released its slot")
}

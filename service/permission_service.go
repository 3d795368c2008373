// engine/service/permission_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/audit"
	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	"github.com/dev-mohitbeniwal/aegis/engine/config"
	"github.com/dev-mohitbeniwal/aegis/engine/invalidation"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

// Protection primitive names for the check path. One shared instance per
// name within a process.
const (
	checkBreakerName  = "permission-check"
	checkLimiterName  = "permission-check"
	checkBulkheadName = "permission-check"
)

// IPermissionService defines the interface for permission state operations
type IPermissionService interface {
	CheckPermission(ctx context.Context, req model.CheckRequest) (*model.CheckDecision, error)
	BatchCheckPermission(ctx context.Context, req model.BatchCheckRequest) (*model.BatchCheckDecision, error)

	InvalidateKey(ctx context.Context, cacheKey, reason string, level model.CacheLevel, mode model.InvalidationMode) error
	InvalidateForUser(ctx context.Context, userID, reason string, level model.CacheLevel, mode model.InvalidationMode) (int, error)
	InvalidateForRole(ctx context.Context, roleID, reason string, mode model.InvalidationMode) (int, error)
	InvalidateByPattern(ctx context.Context, pattern, reason string, mode model.InvalidationMode) (int, error)

	ConfigureCircuitBreaker(ctx context.Context, cfg model.BreakerConfig) (*model.BreakerConfig, error)
	ConfigureRateLimiter(ctx context.Context, cfg model.LimiterConfig) (*model.LimiterConfig, error)
	ConfigureBulkhead(ctx context.Context, cfg model.BulkheadConfig) (*model.BulkheadConfig, error)
	ResilienceSnapshot(ctx context.Context) model.ProtectionSnapshot

	CacheStats() model.CacheStatsSnapshot
	QueryProtectionEvents(ctx context.Context, from, to time.Time, kind, principalID string) ([]audit.ProtectionEvent, error)
}

// PermissionService orchestrates the check path: protection primitives
// around the cache tiers around the graph resolver.
type PermissionService struct {
	facade         *cache.Facade
	engine         *invalidation.Engine
	registry       *resilience.Registry
	controller     *resilience.Controller
	auditService   audit.Service
	validationUtil *util.ValidationUtil
	eventBus       *util.EventBus
}

var _ IPermissionService = &PermissionService{}

// NewPermissionService creates a new instance of PermissionService
func NewPermissionService(facade *cache.Facade, engine *invalidation.Engine, registry *resilience.Registry, controller *resilience.Controller, auditService audit.Service, validationUtil *util.ValidationUtil, eventBus *util.EventBus) *PermissionService {
	service := &PermissionService{
		facade:         facade,
		engine:         engine,
		registry:       registry,
		controller:     controller,
		auditService:   auditService,
		validationUtil: validationUtil,
		eventBus:       eventBus,
	}

	eventBus.Subscribe(invalidation.EventEscalated, service.handleInvalidationEscalated)

	return service
}

func (s *PermissionService) handleInvalidationEscalated(ctx context.Context, event util.Event) error {
	task, ok := event.Payload.(model.InvalidationTask)
	if !ok {
		return nil
	}
	detail, _ := json.Marshal(task)
	return s.auditService.LogEvent(ctx, audit.ProtectionEvent{
		Timestamp: time.Now(),
		Kind:      audit.KindInvalidationEscalated,
		CacheKey:  task.CacheKey,
		Detail:    detail,
	})
}

func (s *PermissionService) strategy(req model.Strategy) model.Strategy {
	if req.Valid() {
		return req
	}
	return model.StrategyUserPermissions
}

// CheckPermission answers one permission check. The breaker wraps the whole
// path so that when it opens, rejected calls skip the limiter and bulkhead
// entirely.
func (s *PermissionService) CheckPermission(ctx context.Context, req model.CheckRequest) (*model.CheckDecision, error) {
	if err := s.validationUtil.ValidateCheckRequest(req); err != nil {
		return nil, err
	}
	strategy := s.strategy(req.Strategy)

	var decision *model.CheckDecision
	err := s.registry.Breaker(checkBreakerName).Execute(ctx, func(ctx context.Context) error {
		if err := s.registry.Limiter(checkLimiterName).Allow(ctx, req.LimitKey()); err != nil {
			s.auditRejection(ctx, audit.KindLimiterRejected, req.PrincipalID, err)
			return err
		}

		token, err := s.registry.Bulkhead(checkBulkheadName).Admit(ctx, req.PrincipalID)
		if err != nil {
			s.auditRejection(ctx, audit.KindBulkheadRejected, req.PrincipalID, err)
			return err
		}
		defer token.Release()

		opCtx, cancel := context.WithTimeout(ctx, config.GetDuration("resilience.operationTimeout"))
		defer cancel()

		set, source, err := s.facade.Resolve(opCtx, strategy, req.PrincipalID, req.Scope, req.ScopeID)
		if err != nil {
			return err
		}
		decision = &model.CheckDecision{
			PrincipalID: req.PrincipalID,
			Permission:  req.Permission,
			Allowed:     set.Has(req.Permission),
			Permissions: set.Permissions,
			Roles:       set.Roles,
			Source:      source,
			CheckedAt:   time.Now(),
		}
		return nil
	})
	if err != nil {
		logger.Warn("Permission check failed",
			zap.String("principalId", req.PrincipalID),
			zap.String("permission", req.Permission),
			zap.Error(err))
		return nil, err
	}
	if !decision.Allowed {
		detail, _ := json.Marshal(map[string]string{
			"permission": req.Permission,
			"source":     decision.Source,
		})
		if err := s.auditService.LogEvent(ctx, audit.ProtectionEvent{
			Timestamp:   time.Now(),
			Kind:        audit.KindCheckDenied,
			PrincipalID: req.PrincipalID,
			Primitive:   checkBreakerName,
			Detail:      detail,
		}); err != nil {
			logger.Warn("Failed to audit denied check",
				zap.String("principalId", req.PrincipalID), zap.Error(err))
		}
	}
	return decision, nil
}

// BatchCheckPermission checks one permission for many principals. The work
// behind the protection chain stays one batched resolution end to end.
func (s *PermissionService) BatchCheckPermission(ctx context.Context, req model.BatchCheckRequest) (*model.BatchCheckDecision, error) {
	if err := s.validationUtil.ValidateBatchCheckRequest(req); err != nil {
		return nil, err
	}
	strategy := s.strategy(req.Strategy)

	var batch *model.BatchCheckDecision
	err := s.registry.Breaker(checkBreakerName).Execute(ctx, func(ctx context.Context) error {
		limitKey := model.LimitKey{ServerID: req.ServerID, Origin: req.Origin}
		if err := s.registry.Limiter(checkLimiterName).Allow(ctx, limitKey); err != nil {
			s.auditRejection(ctx, audit.KindLimiterRejected, "", err)
			return err
		}

		token, err := s.registry.Bulkhead(checkBulkheadName).Admit(ctx, req.ServerID)
		if err != nil {
			s.auditRejection(ctx, audit.KindBulkheadRejected, "", err)
			return err
		}
		defer token.Release()

		opCtx, cancel := context.WithTimeout(ctx, config.GetDuration("resilience.operationTimeout"))
		defer cancel()

		sets, err := s.facade.ResolveBatch(opCtx, strategy, req.PrincipalIDs, req.Scope, req.ScopeID)
		if err != nil {
			return err
		}
		now := time.Now()
		batch = &model.BatchCheckDecision{
			Results:   make(map[string]model.CheckDecision, len(sets)),
			CheckedAt: now,
		}
		for id, set := range sets {
			batch.Results[id] = model.CheckDecision{
				PrincipalID: id,
				Permission:  req.Permission,
				Allowed:     set.Has(req.Permission),
				Permissions: set.Permissions,
				Roles:       set.Roles,
				Source:      "batch",
				CheckedAt:   now,
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("Batch permission check failed",
			zap.Int("principals", len(req.PrincipalIDs)),
			zap.String("permission", req.Permission),
			zap.Error(err))
		return nil, err
	}
	return batch, nil
}

func (s *PermissionService) auditRejection(ctx context.Context, kind, principalID string, cause error) {
	detail, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if err := s.auditService.LogEvent(ctx, audit.ProtectionEvent{
		Timestamp:   time.Now(),
		Kind:        kind,
		PrincipalID: principalID,
		Primitive:   checkBreakerName,
		Detail:      detail,
	}); err != nil {
		logger.Warn("Failed to audit protection rejection", zap.String("kind", kind), zap.Error(err))
	}
}

// InvalidateKey invalidates one cache key. Single-key writes default to
// synchronous invalidation.
func (s *PermissionService) InvalidateKey(ctx context.Context, cacheKey, reason string, level model.CacheLevel, mode model.InvalidationMode) error {
	if err := s.validationUtil.ValidateCacheLevel(level); err != nil {
		return err
	}
	if mode == model.InvalidationDelayed {
		return s.engine.Enqueue(ctx, model.InvalidationTask{
			CacheKey: cacheKey,
			Level:    level,
			Reason:   reason,
		})
	}
	return s.engine.Invalidate(ctx, cacheKey, reason, model.Dimensions{}, level)
}

// InvalidateForUser drops every cached entry indexed to one user. A user
// permission change has a small blast radius and the user must see it
// immediately, so the default is synchronous.
func (s *PermissionService) InvalidateForUser(ctx context.Context, userID, reason string, level model.CacheLevel, mode model.InvalidationMode) (int, error) {
	if mode == model.InvalidationDelayed {
		err := s.engine.Enqueue(ctx, model.InvalidationTask{
			Level:      level,
			Reason:     reason,
			Dimensions: model.Dimensions{UserID: userID},
		})
		return 0, err
	}
	return s.engine.InvalidateByDimension(ctx, model.DimensionUser, userID, reason)
}

// InvalidateForRole enqueues invalidation of everything indexed to a role.
// Role changes fan out to many keys, so the default is the delayed queue
// unless the caller forces synchronous.
func (s *PermissionService) InvalidateForRole(ctx context.Context, roleID, reason string, mode model.InvalidationMode) (int, error) {
	if mode == model.InvalidationSync {
		return s.engine.InvalidateByDimension(ctx, model.DimensionRole, roleID, reason)
	}
	err := s.engine.Enqueue(ctx, model.InvalidationTask{
		Level:      model.CacheLevelAll,
		Reason:     reason,
		Dimensions: model.Dimensions{RoleID: roleID},
	})
	return 0, err
}

// InvalidateByPattern enqueues invalidation of everything registered under a
// pattern dimension.
func (s *PermissionService) InvalidateByPattern(ctx context.Context, pattern, reason string, mode model.InvalidationMode) (int, error) {
	if mode == model.InvalidationSync {
		return s.engine.InvalidateByDimension(ctx, model.DimensionPattern, pattern, reason)
	}
	err := s.engine.Enqueue(ctx, model.InvalidationTask{
		Level:      model.CacheLevelAll,
		Reason:     reason,
		Dimensions: model.Dimensions{Pattern: pattern},
	})
	return 0, err
}

func (s *PermissionService) ConfigureCircuitBreaker(ctx context.Context, cfg model.BreakerConfig) (*model.BreakerConfig, error) {
	updated, err := s.controller.SetBreakerConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.auditConfigChange(ctx, "circuit_breaker", updated.Name, updated)
	return &updated, nil
}

func (s *PermissionService) ConfigureRateLimiter(ctx context.Context, cfg model.LimiterConfig) (*model.LimiterConfig, error) {
	updated, err := s.controller.SetLimiterConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.auditConfigChange(ctx, "rate_limiter", updated.Name, updated)
	return &updated, nil
}

func (s *PermissionService) ConfigureBulkhead(ctx context.Context, cfg model.BulkheadConfig) (*model.BulkheadConfig, error) {
	updated, err := s.controller.SetBulkheadConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.auditConfigChange(ctx, "bulkhead", updated.Name, updated)
	return &updated, nil
}

func (s *PermissionService) auditConfigChange(ctx context.Context, primitive, name string, cfg any) {
	detail, _ := json.Marshal(cfg)
	if err := s.auditService.LogEvent(ctx, audit.ProtectionEvent{
		Timestamp: time.Now(),
		Kind:      audit.KindConfigChanged,
		Primitive: primitive + ":" + name,
		Detail:    detail,
	}); err != nil {
		logger.Warn("Failed to audit config change",
			zap.String("primitive", primitive), zap.String("name", name), zap.Error(err))
	}
}

func (s *PermissionService) ResilienceSnapshot(ctx context.Context) model.ProtectionSnapshot {
	return s.registry.Snapshot(ctx)
}

func (s *PermissionService) CacheStats() model.CacheStatsSnapshot {
	return s.facade.Stats()
}

func (s *PermissionService) QueryProtectionEvents(ctx context.Context, from, to time.Time, kind, principalID string) ([]audit.ProtectionEvent, error) {
	return s.auditService.QueryEvents(ctx, from, to, kind, principalID)
}

// engine/controller/permission_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/service"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

type PermissionController struct {
	permissionService service.IPermissionService
}

func NewPermissionController(permissionService service.IPermissionService) *PermissionController {
	return &PermissionController{
		permissionService: permissionService,
	}
}

// RegisterRoutes registers the API routes for permission checks and
// invalidation.
func (pc *PermissionController) RegisterRoutes(r *gin.RouterGroup) {
	permissions := r.Group("/permissions")
	{
		permissions.POST("/check", pc.CheckPermission)
		permissions.POST("/check/batch", pc.BatchCheckPermission)
	}
	invalidations := r.Group("/invalidations")
	{
		invalidations.POST("/key", pc.InvalidateKey)
		invalidations.POST("/users/:id", pc.InvalidateForUser)
		invalidations.POST("/roles/:id", pc.InvalidateForRole)
		invalidations.POST("/patterns", pc.InvalidateByPattern)
	}
	r.GET("/cache/stats", pc.CacheStats)
}

// CheckPermission endpoint
func (pc *PermissionController) CheckPermission(c *gin.Context) {
	var req model.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid check request", aegis_errors.ErrInvalidRequest)
		return
	}
	if req.Origin == "" {
		req.Origin = c.ClientIP()
	}

	decision, err := pc.permissionService.CheckPermission(c, req)
	if err != nil {
		respondWithProtectionError(c, err, "Failed to check permission")
		return
	}

	c.JSON(http.StatusOK, decision)
}

// BatchCheckPermission endpoint
func (pc *PermissionController) BatchCheckPermission(c *gin.Context) {
	var req model.BatchCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid batch check request", aegis_errors.ErrInvalidRequest)
		return
	}
	if req.Origin == "" {
		req.Origin = c.ClientIP()
	}

	decision, err := pc.permissionService.BatchCheckPermission(c, req)
	if err != nil {
		respondWithProtectionError(c, err, "Failed to batch check permissions")
		return
	}

	c.JSON(http.StatusOK, decision)
}

type invalidateKeyRequest struct {
	CacheKey string                 `json:"cache_key" binding:"required"`
	Reason   string                 `json:"reason"`
	Level    model.CacheLevel       `json:"level"`
	Mode     model.InvalidationMode `json:"mode"`
}

// InvalidateKey endpoint
func (pc *PermissionController) InvalidateKey(c *gin.Context) {
	var req invalidateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid invalidation request", aegis_errors.ErrInvalidRequest)
		return
	}
	if req.Level == "" {
		req.Level = model.CacheLevelAll
	}

	if err := pc.permissionService.InvalidateKey(c, req.CacheKey, req.Reason, req.Level, req.Mode); err != nil {
		switch {
		case errors.Is(err, aegis_errors.ErrInvalidCacheLevel):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid cache level", err)
		default:
			respondWithProtectionError(c, err, "Failed to invalidate key")
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"cache_key": req.CacheKey})
}

type invalidateDimensionRequest struct {
	Reason string                 `json:"reason"`
	Level  model.CacheLevel       `json:"level"`
	Mode   model.InvalidationMode `json:"mode"`
}

// InvalidateForUser endpoint
func (pc *PermissionController) InvalidateForUser(c *gin.Context) {
	userID := c.Param("id")
	var req invalidateDimensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid invalidation request", aegis_errors.ErrInvalidRequest)
		return
	}
	if req.Level == "" {
		req.Level = model.CacheLevelAll
	}

	count, err := pc.permissionService.InvalidateForUser(c, userID, req.Reason, req.Level, req.Mode)
	if err != nil {
		respondWithProtectionError(c, err, "Failed to invalidate user entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "invalidated": count})
}

// InvalidateForRole endpoint
func (pc *PermissionController) InvalidateForRole(c *gin.Context) {
	roleID := c.Param("id")
	var req invalidateDimensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid invalidation request", aegis_errors.ErrInvalidRequest)
		return
	}

	count, err := pc.permissionService.InvalidateForRole(c, roleID, req.Reason, req.Mode)
	if err != nil {
		respondWithProtectionError(c, err, "Failed to invalidate role entries")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"role_id": roleID, "invalidated": count})
}

type invalidatePatternRequest struct {
	Pattern string                 `json:"pattern" binding:"required"`
	Reason  string                 `json:"reason"`
	Mode    model.InvalidationMode `json:"mode"`
}

// InvalidateByPattern endpoint
func (pc *PermissionController) InvalidateByPattern(c *gin.Context) {
	var req invalidatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid invalidation request", aegis_errors.ErrInvalidRequest)
		return
	}

	count, err := pc.permissionService.InvalidateByPattern(c, req.Pattern, req.Reason, req.Mode)
	if err != nil {
		respondWithProtectionError(c, err, "Failed to invalidate pattern entries")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"pattern": req.Pattern, "invalidated": count})
}

// CacheStats endpoint
func (pc *PermissionController) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, pc.permissionService.CacheStats())
}

// respondWithProtectionError maps engine errors to HTTP statuses shared by
// the check and invalidation endpoints.
func respondWithProtectionError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, aegis_errors.ErrInvalidRequest):
		util.RespondWithError(c, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, aegis_errors.ErrBreakerOpen):
		util.RespondWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable", err)
	case errors.Is(err, aegis_errors.ErrCapacityExceeded):
		util.RespondWithError(c, http.StatusTooManyRequests, "Too many requests", err)
	case errors.Is(err, aegis_errors.ErrResolverFailure):
		util.RespondWithError(c, http.StatusBadGateway, "Permission source unavailable", err)
	case errors.Is(err, aegis_errors.ErrStoreUnavailable):
		util.RespondWithError(c, http.StatusServiceUnavailable, "State store unavailable", err)
	default:
		util.RespondWithError(c, http.StatusInternalServerError, message, aegis_errors.ErrInternalServer)
	}
}

// engine/controller/resilience_controller.go
package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/service"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

type ResilienceController struct {
	permissionService service.IPermissionService
}

func NewResilienceController(permissionService service.IPermissionService) *ResilienceController {
	return &ResilienceController{
		permissionService: permissionService,
	}
}

// RegisterRoutes registers the API routes for resilience configuration and
// visibility.
func (rc *ResilienceController) RegisterRoutes(r *gin.RouterGroup) {
	resilience := r.Group("/resilience")
	{
		resilience.PUT("/breakers", rc.ConfigureBreaker)
		resilience.PUT("/limiters", rc.ConfigureLimiter)
		resilience.PUT("/bulkheads", rc.ConfigureBulkhead)
		resilience.GET("/snapshot", rc.Snapshot)
		resilience.GET("/events", rc.Events)
	}
}

// Durations cross the API as strings like "30s" so operators never guess the
// unit of a bare integer.
type breakerConfigRequest struct {
	Name             string `json:"name" binding:"required"`
	Enabled          *bool  `json:"enabled"`
	FailureThreshold int    `json:"failure_threshold"`
	RecoveryTimeout  string `json:"recovery_timeout"`
	HalfOpenMaxCalls int    `json:"half_open_max_calls"`
}

type quotaRequest struct {
	MaxRequests     int     `json:"max_requests"`
	Window          string  `json:"window"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	BurstSize       int     `json:"burst_size"`
}

type limiterConfigRequest struct {
	Name       string                  `json:"name" binding:"required"`
	Enabled    *bool                   `json:"enabled"`
	Algorithm  string                  `json:"algorithm"`
	Dimensions map[string]quotaRequest `json:"dimensions"`
}

type bulkheadConfigRequest struct {
	Name          string `json:"name" binding:"required"`
	Enabled       *bool  `json:"enabled"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxWait       string `json:"max_wait"`
}

func parseDuration(raw, field string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid duration for " + field)
	}
	return d, nil
}

func enabledOrDefault(enabled *bool) bool {
	if enabled == nil {
		return true
	}
	return *enabled
}

// ConfigureBreaker endpoint
func (rc *ResilienceController) ConfigureBreaker(c *gin.Context) {
	var req breakerConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid breaker config", aegis_errors.ErrInvalidRequest)
		return
	}
	recovery, err := parseDuration(req.RecoveryTimeout, "recovery_timeout")
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, err.Error(), aegis_errors.ErrInvalidRequest)
		return
	}

	cfg := model.DefaultBreakerConfig(req.Name)
	cfg.Enabled = enabledOrDefault(req.Enabled)
	if req.FailureThreshold > 0 {
		cfg.FailureThreshold = req.FailureThreshold
	}
	if recovery > 0 {
		cfg.RecoveryTimeout = recovery
	}
	if req.HalfOpenMaxCalls > 0 {
		cfg.HalfOpenMaxCalls = req.HalfOpenMaxCalls
	}

	updated, err := rc.permissionService.ConfigureCircuitBreaker(c, cfg)
	if err != nil {
		respondWithConfigError(c, err, "Failed to configure circuit breaker")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ConfigureLimiter endpoint
func (rc *ResilienceController) ConfigureLimiter(c *gin.Context) {
	var req limiterConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid limiter config", aegis_errors.ErrInvalidRequest)
		return
	}

	cfg := model.LimiterConfig{
		Name:       req.Name,
		Enabled:    enabledOrDefault(req.Enabled),
		Algorithm:  model.LimiterAlgorithm(req.Algorithm),
		Dimensions: make(map[model.LimitDimension]model.DimensionQuota, len(req.Dimensions)),
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = model.AlgorithmSlidingWindow
	}
	for dim, quota := range req.Dimensions {
		window, err := parseDuration(quota.Window, "dimensions."+dim+".window")
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, err.Error(), aegis_errors.ErrInvalidRequest)
			return
		}
		cfg.Dimensions[model.LimitDimension(dim)] = model.DimensionQuota{
			MaxRequests:     quota.MaxRequests,
			Window:          window,
			TokensPerSecond: quota.TokensPerSecond,
			BurstSize:       quota.BurstSize,
		}
	}

	updated, err := rc.permissionService.ConfigureRateLimiter(c, cfg)
	if err != nil {
		respondWithConfigError(c, err, "Failed to configure rate limiter")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ConfigureBulkhead endpoint
func (rc *ResilienceController) ConfigureBulkhead(c *gin.Context) {
	var req bulkheadConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid bulkhead config", aegis_errors.ErrInvalidRequest)
		return
	}
	maxWait, err := parseDuration(req.MaxWait, "max_wait")
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, err.Error(), aegis_errors.ErrInvalidRequest)
		return
	}

	cfg := model.DefaultBulkheadConfig(req.Name)
	cfg.Enabled = enabledOrDefault(req.Enabled)
	if req.MaxConcurrent > 0 {
		cfg.MaxConcurrent = req.MaxConcurrent
	}
	if maxWait > 0 {
		cfg.MaxWait = maxWait
	}

	updated, err := rc.permissionService.ConfigureBulkhead(c, cfg)
	if err != nil {
		respondWithConfigError(c, err, "Failed to configure bulkhead")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Snapshot endpoint
func (rc *ResilienceController) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, rc.permissionService.ResilienceSnapshot(c))
}

// Events endpoint
func (rc *ResilienceController) Events(c *gin.Context) {
	from := time.Now().Add(-24 * time.Hour)
	to := time.Now()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid from timestamp", aegis_errors.ErrInvalidRequest)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid to timestamp", aegis_errors.ErrInvalidRequest)
			return
		}
		to = parsed
	}

	events, err := rc.permissionService.QueryProtectionEvents(c, from, to, c.Query("kind"), c.Query("principal_id"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query protection events", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func respondWithConfigError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, aegis_errors.ErrInvalidConfig):
		util.RespondWithError(c, http.StatusBadRequest, "Invalid configuration", err)
	case errors.Is(err, aegis_errors.ErrStoreUnavailable):
		util.RespondWithError(c, http.StatusServiceUnavailable, "State store unavailable", err)
	default:
		util.RespondWithError(c, http.StatusInternalServerError, message, aegis_errors.ErrInternalServer)
	}
}

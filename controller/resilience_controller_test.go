// engine/controller/resilience_controller_test.go
package controller_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/dev-mohitbeniwal/aegis/engine/audit"
	"github.com/dev-mohitbeniwal/aegis/engine/controller"
	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	mock_service "github.com/dev-mohitbeniwal/aegis/engine/test/service_mock"
)

func TestResilienceController(t *testing.T) {
	// Initialize logger
	logger.InitLogger("../logging")
	defer logger.Sync()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPermissionService := mock_service.NewMockIPermissionService(ctrl)
	resilienceController := controller.NewResilienceController(mockPermissionService)
	router := setupRouter()
	api := router.Group("/")
	resilienceController.RegisterRoutes(api)

	t.Run("ConfigureBreaker_Success", func(t *testing.T) {
		mockPermissionService.EXPECT().
			ConfigureCircuitBreaker(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cfg model.BreakerConfig) (*model.BreakerConfig, error) {
				assert.Equal(t, "permission-check", cfg.Name)
				assert.Equal(t, 7, cfg.FailureThreshold)
				assert.Equal(t, 45*time.Second, cfg.RecoveryTimeout)
				return &cfg, nil
			})

		body := strings.NewReader(`{"name":"permission-check","failure_threshold":7,"recovery_timeout":"45s"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/resilience/breakers", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ConfigureBreaker_Failure_BadDuration", func(t *testing.T) {
		body := strings.NewReader(`{"name":"permission-check","recovery_timeout":"forty seconds"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/resilience/breakers", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ConfigureLimiter_Success", func(t *testing.T) {
		mockPermissionService.EXPECT().
			ConfigureRateLimiter(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cfg model.LimiterConfig) (*model.LimiterConfig, error) {
				assert.Equal(t, model.AlgorithmTokenBucket, cfg.Algorithm)
				assert.Equal(t, 5.0, cfg.Dimensions[model.DimUser].TokensPerSecond)
				return &cfg, nil
			})

		body := strings.NewReader(`{"name":"permission-check","algorithm":"token_bucket","dimensions":{"user":{"tokens_per_second":5,"burst_size":10}}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/resilience/limiters", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ConfigureLimiter_Failure_InvalidConfig", func(t *testing.T) {
		mockPermissionService.EXPECT().
			ConfigureRateLimiter(gomock.Any(), gomock.Any()).
			Return(nil, aegis_errors.ErrInvalidConfig)

		body := strings.NewReader(`{"name":"permission-check","algorithm":"leaky_bucket"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/resilience/limiters", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ConfigureBulkhead_Success", func(t *testing.T) {
		mockPermissionService.EXPECT().
			ConfigureBulkhead(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cfg model.BulkheadConfig) (*model.BulkheadConfig, error) {
				assert.Equal(t, 50, cfg.MaxConcurrent)
				assert.Equal(t, 200*time.Millisecond, cfg.MaxWait)
				return &cfg, nil
			})

		body := strings.NewReader(`{"name":"permission-check","max_concurrent":50,"max_wait":"200ms"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/resilience/bulkheads", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ConfigureBulkhead_Failure_StoreDown", func(t *testing.T) {
		mockPermissionService.EXPECT().
			ConfigureBulkhead(gomock.Any(), gomock.Any()).
			Return(nil, aegis_errors.ErrStoreUnavailable)

		body := strings.NewReader(`{"name":"permission-check","max_concurrent":50}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/resilience/bulkheads", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("Snapshot_Success", func(t *testing.T) {
		mockPermissionService.EXPECT().
			ResilienceSnapshot(gomock.Any()).
			Return(model.ProtectionSnapshot{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/resilience/snapshot", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Events_Success", func(t *testing.T) {
		mockPermissionService.EXPECT().
			QueryProtectionEvents(gomock.Any(), gomock.Any(), gomock.Any(), "breaker_rejected", "u1").
			Return([]audit.ProtectionEvent{{Kind: "breaker_rejected", PrincipalID: "u1"}}, nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/resilience/events?kind=breaker_rejected&principal_id=u1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "breaker_rejected")
	})

	t.Run("Events_Failure_BadTimestamp", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/resilience/events?from=yesterday", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

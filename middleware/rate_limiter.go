// engine/middleware/rate_limiter.go

package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
)

// RateLimiter guards the whole HTTP surface with the shared edge limiter.
// Per-principal quotas are enforced again inside the check path.
func RateLimiter(limiter *resilience.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := model.LimitKey{Origin: c.ClientIP()}
		if err := limiter.Allow(c, key); err != nil {
			if errors.Is(err, aegis_errors.ErrCapacityExceeded) {
				logger.Warn("Edge rate limit exceeded", zap.String("ip", c.ClientIP()))
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
				c.Abort()
				return
			}
			logger.Error("Edge rate limiting failed", zap.Error(err), zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting failed"})
			c.Abort()
			return
		}

		c.Next()
	}
}

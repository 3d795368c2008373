// engine/router/router.go

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dev-mohitbeniwal/aegis/engine/controller"
	"github.com/dev-mohitbeniwal/aegis/engine/middleware"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
)

func SetupRouter(
	controllers *controller.Controllers,
	edgeLimiter *resilience.RateLimiter,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(edgeLimiter))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	controllers.Permission.RegisterRoutes(api)
	controllers.Resilience.RegisterRoutes(api)

	return router
}

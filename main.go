package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/audit"
	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	"github.com/dev-mohitbeniwal/aegis/engine/config"
	"github.com/dev-mohitbeniwal/aegis/engine/controller"
	"github.com/dev-mohitbeniwal/aegis/engine/db"
	"github.com/dev-mohitbeniwal/aegis/engine/invalidation"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	"github.com/dev-mohitbeniwal/aegis/engine/resilience"
	"github.com/dev-mohitbeniwal/aegis/engine/router"
	"github.com/dev-mohitbeniwal/aegis/engine/service"
	"github.com/dev-mohitbeniwal/aegis/engine/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	eventBus.Start(ctx)

	// Cache tiers. The remote ring uses the dedicated shards when
	// configured and falls back to the primary node otherwise.
	tierOne := cache.NewTierOne(strategyPartitions(), cache.PartitionConfig{
		MaxItems: 1000,
		TTL:      time.Minute,
	})

	ring := cache.NewRing(config.GetInt("redis.shardVirtualNodes"))
	if len(db.ShardClients) == 0 {
		ring.Add(db.NewRedisNode("primary", db.RedisClient))
	}
	for addr, client := range db.ShardClients {
		ring.Add(db.NewRedisNode(addr, client))
	}
	go ring.HealthLoop(ctx, config.GetDuration("redis.shardHealthInterval"))

	tierTwo := cache.NewTierTwo(ring,
		config.GetDuration("cache.tierTwoTTL"),
		config.GetDuration("cache.versionTTL"))

	// Invalidation engine, delayed queue worker and cross-process drops.
	store := db.NewRedisStore(db.RedisClient)
	index := invalidation.NewReverseIndex(store, config.GetDuration("cache.indexTTL"))
	queue := invalidation.NewDelayedQueue(store)
	engine := invalidation.NewEngine(tierOne, tierTwo, index, queue, eventBus,
		config.GetInt("invalidation.retryAttempts"),
		config.GetDuration("invalidation.retryBackoff"))

	if config.GetBool("invalidation.broadcastEnabled") {
		broadcaster := invalidation.NewBroadcaster(db.RedisClient, tierOne, uuid.New().String())
		broadcaster.Listen(ctx)
		engine.SetBroadcaster(broadcaster)
	}

	worker := invalidation.NewWorker(engine, queue,
		config.GetDuration("invalidation.drainInterval"),
		config.GetInt("invalidation.drainBatchSize"),
		config.GetDuration("invalidation.cleanupInterval"),
		config.GetDuration("invalidation.maxTaskAge"))
	worker.Start(ctx)

	// Resilience layer: shared state, config controller, primitives.
	stateStore := resilience.NewRedisStateStore(db.RedisClient)
	resilienceController := resilience.NewController(store, config.GetDuration("resilience.configCacheTTL"))
	registry := resilience.NewRegistry(resilienceController, stateStore)

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	services, err := service.InitializeServices(
		db.Neo4jDriver,
		tierOne,
		tierTwo,
		engine,
		index,
		registry,
		resilienceController,
		auditService,
		validationUtil,
		eventBus,
	)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// Initialize controllers
	controllers := controller.InitializeControllers(services)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engineRouter := router.SetupRouter(controllers, registry.Limiter("http-edge"))

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engineRouter,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// strategyPartitions reads the per-strategy sizing from configuration.
func strategyPartitions() map[model.Strategy]cache.PartitionConfig {
	strategies := []model.Strategy{
		model.StrategyUserPermissions,
		model.StrategyRolePermissions,
		model.StrategyInheritanceTree,
	}
	configs := make(map[model.Strategy]cache.PartitionConfig, len(strategies))
	for _, strategy := range strategies {
		prefix := "cache.strategies." + string(strategy)
		configs[strategy] = cache.PartitionConfig{
			MaxItems: config.GetInt(prefix + ".maxItems"),
			TTL:      config.GetDuration(prefix + ".ttl"),
		}
	}
	return configs
}

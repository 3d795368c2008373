// engine/db/redis.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
)

var (
	// RedisClient is the primary node: configuration, protection state,
	// reverse indexes and the invalidation queue all live here.
	RedisClient *redis.Client

	// ShardClients are the optional cache-tier nodes, keyed by address.
	// Empty when the primary also serves the remote tier.
	ShardClients map[string]*redis.Client
)

func newClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})
}

func InitRedis() error {
	RedisClient = newClient(viper.GetString("redis.addr"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ShardClients = make(map[string]*redis.Client)
	for _, addr := range viper.GetStringSlice("redis.shards") {
		ShardClients[addr] = newClient(addr)
		// Shards are allowed to be down at startup; the ring routes
		// around them until their health check passes.
		if _, err := ShardClients[addr].Ping(ctx).Result(); err != nil {
			logger.Warn("Cache shard unreachable at startup", zap.String("addr", addr), zap.Error(err))
		}
	}

	logger.Info("Successfully connected to Redis",
		zap.String("addr", viper.GetString("redis.addr")),
		zap.Int("shards", len(ShardClients)))
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
	for addr, client := range ShardClients {
		if err := client.Close(); err != nil {
			logger.Error("Error closing Redis shard connection", zap.String("addr", addr), zap.Error(err))
		}
	}
}

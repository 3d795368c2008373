// engine/config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr   string
	Shards []string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("log.dir", "logging")

	// Redis connection and pooling
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.dialTimeout", "5s")
	viper.SetDefault("redis.readTimeout", "500ms")
	viper.SetDefault("redis.writeTimeout", "500ms")
	viper.SetDefault("redis.poolSize", 50)
	viper.SetDefault("redis.poolTimeout", "2s")
	// Optional cache shard addresses; empty means the primary node serves
	// the remote tier as well.
	viper.SetDefault("redis.shards", []string{})
	viper.SetDefault("redis.shardVirtualNodes", 64)
	viper.SetDefault("redis.shardHealthInterval", "5s")

	// Cache tiers. Each strategy has its own partition so a hot strategy
	// cannot evict a cold one.
	viper.SetDefault("cache.tierTwoTTL", "10m")
	viper.SetDefault("cache.versionTTL", "1h")
	viper.SetDefault("cache.indexTTL", "30m")
	viper.SetDefault("cache.strategies.user-permissions.maxItems", 10000)
	viper.SetDefault("cache.strategies.user-permissions.ttl", "5m")
	viper.SetDefault("cache.strategies.role-permissions.maxItems", 2000)
	viper.SetDefault("cache.strategies.role-permissions.ttl", "10m")
	viper.SetDefault("cache.strategies.inheritance-tree.maxItems", 2000)
	viper.SetDefault("cache.strategies.inheritance-tree.ttl", "15m")

	// Invalidation queue
	viper.SetDefault("invalidation.broadcastEnabled", true)
	viper.SetDefault("invalidation.drainInterval", "1s")
	viper.SetDefault("invalidation.drainBatchSize", 100)
	viper.SetDefault("invalidation.maxTaskAge", "10m")
	viper.SetDefault("invalidation.cleanupInterval", "1m")
	viper.SetDefault("invalidation.retryAttempts", 3)
	viper.SetDefault("invalidation.retryBackoff", "100ms")

	// Resilience
	viper.SetDefault("resilience.configCacheTTL", "30s")
	viper.SetDefault("resilience.bulkheadRetryInterval", "20ms")
	viper.SetDefault("resilience.operationTimeout", "2s")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStringSlice retrieves a string slice value from the configuration
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

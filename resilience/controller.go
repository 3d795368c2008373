// engine/resilience/controller.go
package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/db"
	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
)

const (
	breakerConfigPrefix  = "rs:cfg:cb:"
	limiterConfigPrefix  = "rs:cfg:rl:"
	bulkheadConfigPrefix = "rs:cfg:bh:"
	configVersionKey     = "rs:cfgver"
)

type configEntry struct {
	raw       string
	fetchedAt time.Time
}

// Controller is the configuration authority for every protection primitive.
// Named configs live in the shared store so all processes converge on the
// same policy; each process keeps a short-TTL local copy so the hot path
// does not pay a store round trip per admission decision.
type Controller struct {
	store    db.ConfigStore
	cacheTTL time.Duration
	validate *validator.Validate

	mu    sync.Mutex
	cache map[string]configEntry
}

func NewController(store db.ConfigStore, cacheTTL time.Duration) *Controller {
	return &Controller{
		store:    store,
		cacheTTL: cacheTTL,
		validate: validator.New(),
		cache:    make(map[string]configEntry),
	}
}

// fetch returns the stored JSON for key, consulting the local copy first.
// When the store is unreachable an expired local copy is served rather than
// failing the admission decision.
func (c *Controller) fetch(ctx context.Context, key string, defaultJSON string) (string, error) {
	c.mu.Lock()
	entry, ok := c.cache[key]
	c.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < c.cacheTTL {
		return entry.raw, nil
	}

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		if ok {
			logger.Warn("Resilience config store unreachable, serving stale config",
				zap.String("key", key),
				zap.Error(fmt.Errorf("%s: %w", err, aegis_errors.ErrStaleConfig)))
			return entry.raw, nil
		}
		return defaultJSON, err
	}
	if !found {
		// First use of this name: seed the store with the default so every
		// process converges on one policy. Losing the SetNX race is fine,
		// the winner's value is read on the next refresh.
		if _, err := c.store.SetNX(ctx, key, defaultJSON, 0); err != nil {
			logger.Warn("Failed to seed default resilience config",
				zap.String("key", key), zap.Error(err))
		}
		raw = defaultJSON
	}

	c.mu.Lock()
	c.cache[key] = configEntry{raw: raw, fetchedAt: time.Now()}
	c.mu.Unlock()
	return raw, nil
}

func (c *Controller) drop(key string) {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
}

func (c *Controller) BreakerConfig(ctx context.Context, name string) (model.BreakerConfig, error) {
	def := model.DefaultBreakerConfig(name)
	defJSON, _ := json.Marshal(def)

	raw, err := c.fetch(ctx, breakerConfigPrefix+name, string(defJSON))
	cfg := def
	if jsonErr := json.Unmarshal([]byte(raw), &cfg); jsonErr != nil {
		logger.Error("Corrupt breaker config in store, using default",
			zap.String("name", name), zap.Error(jsonErr))
		cfg = def
	}
	return cfg, err
}

func (c *Controller) LimiterConfig(ctx context.Context, name string) (model.LimiterConfig, error) {
	def := model.DefaultLimiterConfig(name)
	defJSON, _ := json.Marshal(def)

	raw, err := c.fetch(ctx, limiterConfigPrefix+name, string(defJSON))
	cfg := def
	if jsonErr := json.Unmarshal([]byte(raw), &cfg); jsonErr != nil {
		logger.Error("Corrupt limiter config in store, using default",
			zap.String("name", name), zap.Error(jsonErr))
		cfg = def
	}
	return cfg, err
}

func (c *Controller) BulkheadConfig(ctx context.Context, name string) (model.BulkheadConfig, error) {
	def := model.DefaultBulkheadConfig(name)
	defJSON, _ := json.Marshal(def)

	raw, err := c.fetch(ctx, bulkheadConfigPrefix+name, string(defJSON))
	cfg := def
	if jsonErr := json.Unmarshal([]byte(raw), &cfg); jsonErr != nil {
		logger.Error("Corrupt bulkhead config in store, using default",
			zap.String("name", name), zap.Error(jsonErr))
		cfg = def
	}
	return cfg, err
}

func (c *Controller) SetBreakerConfig(ctx context.Context, cfg model.BreakerConfig) (model.BreakerConfig, error) {
	if err := c.validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", err, aegis_errors.ErrInvalidConfig)
	}
	return cfg, c.publish(ctx, breakerConfigPrefix+cfg.Name, &cfg.Version, cfg)
}

func (c *Controller) SetLimiterConfig(ctx context.Context, cfg model.LimiterConfig) (model.LimiterConfig, error) {
	if err := c.validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", err, aegis_errors.ErrInvalidConfig)
	}
	if !cfg.Algorithm.Valid() {
		return cfg, fmt.Errorf("algorithm %q: %w", cfg.Algorithm, aegis_errors.ErrInvalidConfig)
	}
	for dim := range cfg.Dimensions {
		switch dim {
		case model.DimUser, model.DimServer, model.DimOrigin, model.DimCombined:
		default:
			return cfg, fmt.Errorf("dimension %q: %w", dim, aegis_errors.ErrInvalidConfig)
		}
	}
	return cfg, c.publish(ctx, limiterConfigPrefix+cfg.Name, &cfg.Version, cfg)
}

func (c *Controller) SetBulkheadConfig(ctx context.Context, cfg model.BulkheadConfig) (model.BulkheadConfig, error) {
	if err := c.validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", err, aegis_errors.ErrInvalidConfig)
	}
	return cfg, c.publish(ctx, bulkheadConfigPrefix+cfg.Name, &cfg.Version, cfg)
}

// publish stamps the next global config version, writes the config to the
// shared store and drops the local copy so this process picks the change up
// immediately. Peer processes converge within their cache TTL.
func (c *Controller) publish(ctx context.Context, key string, version *int64, cfg any) error {
	v, err := c.store.Incr(ctx, configVersionKey)
	if err != nil {
		return err
	}
	*version = v

	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key, string(raw), 0); err != nil {
		return err
	}
	c.drop(key)
	logger.Info("Resilience config updated", zap.String("key", key), zap.Int64("version", v))
	return nil
}

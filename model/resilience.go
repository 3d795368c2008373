// engine/model/resilience.go
package model

import (
	"strings"
	"time"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig is the named policy for one circuit breaker instance.
// Configuration lives in the shared store so operators can change thresholds
// without redeploying.
type BreakerConfig struct {
	Name             string        `json:"name" validate:"required"`
	Enabled          bool          `json:"enabled"`
	FailureThreshold int           `json:"failure_threshold" validate:"min=1"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout" validate:"min=1000000"`
	HalfOpenMaxCalls int           `json:"half_open_max_calls" validate:"min=1"`
	Version          int64         `json:"version"`
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		Enabled:          true,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// LimiterAlgorithm selects the admission algorithm for a named limiter.
type LimiterAlgorithm string

const (
	AlgorithmTokenBucket   LimiterAlgorithm = "token_bucket"
	AlgorithmSlidingWindow LimiterAlgorithm = "sliding_window"
	AlgorithmFixedWindow   LimiterAlgorithm = "fixed_window"
)

func (a LimiterAlgorithm) Valid() bool {
	switch a {
	case AlgorithmTokenBucket, AlgorithmSlidingWindow, AlgorithmFixedWindow:
		return true
	}
	return false
}

// LimitDimension is one independently limited attribute of a request.
// Combined caps the cross-product of the individual dimensions.
type LimitDimension string

const (
	DimUser     LimitDimension = "user"
	DimServer   LimitDimension = "server"
	DimOrigin   LimitDimension = "origin"
	DimCombined LimitDimension = "combined"
)

// LimitDimensionOrder is the evaluation order. Individual dimensions are
// checked before the combined quota.
var LimitDimensionOrder = []LimitDimension{DimUser, DimServer, DimOrigin, DimCombined}

// DimensionQuota holds the per-variant parameters for one dimension.
// A zero quota disables the dimension.
type DimensionQuota struct {
	MaxRequests     int           `json:"max_requests"`
	Window          time.Duration `json:"window"`
	TokensPerSecond float64       `json:"tokens_per_second"`
	BurstSize       int           `json:"burst_size"`
}

// Disabled reports whether this dimension has no configured limit for the
// given algorithm and must not be evaluated.
func (q DimensionQuota) Disabled(algorithm LimiterAlgorithm) bool {
	if algorithm == AlgorithmTokenBucket {
		return q.TokensPerSecond <= 0 || q.BurstSize <= 0
	}
	return q.MaxRequests <= 0 || q.Window <= 0
}

// LimiterConfig is the named policy for one rate limiter instance.
type LimiterConfig struct {
	Name       string                            `json:"name" validate:"required"`
	Enabled    bool                              `json:"enabled"`
	Algorithm  LimiterAlgorithm                  `json:"algorithm" validate:"required"`
	Dimensions map[LimitDimension]DimensionQuota `json:"dimensions"`
	Version    int64                             `json:"version"`
}

func DefaultLimiterConfig(name string) LimiterConfig {
	return LimiterConfig{
		Name:      name,
		Enabled:   true,
		Algorithm: AlgorithmSlidingWindow,
		Dimensions: map[LimitDimension]DimensionQuota{
			DimUser:   {MaxRequests: 100, Window: time.Minute},
			DimOrigin: {MaxRequests: 300, Window: time.Minute},
		},
	}
}

// LimitKey carries the composite limiting attributes of one request.
type LimitKey struct {
	UserID   string
	ServerID string
	Origin   string
}

// Value returns the key component for one dimension, or "" when the request
// does not carry that attribute.
func (k LimitKey) Value(dim LimitDimension) string {
	switch dim {
	case DimUser:
		return k.UserID
	case DimServer:
		return k.ServerID
	case DimOrigin:
		return k.Origin
	case DimCombined:
		parts := []string{k.UserID, k.ServerID, k.Origin}
		if k.UserID == "" && k.ServerID == "" && k.Origin == "" {
			return ""
		}
		return strings.Join(parts, "|")
	}
	return ""
}

// BulkheadConfig is the named policy for one bulkhead instance.
type BulkheadConfig struct {
	Name          string        `json:"name" validate:"required"`
	Enabled       bool          `json:"enabled"`
	MaxConcurrent int           `json:"max_concurrent" validate:"min=1"`
	MaxWait       time.Duration `json:"max_wait" validate:"min=0"`
	Version       int64         `json:"version"`
}

func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		Enabled:       true,
		MaxConcurrent: 25,
		MaxWait:       100 * time.Millisecond,
	}
}

// BreakerStatus is a read-only view of one breaker's shared state, collected
// for operational visibility only, never for decisions.
type BreakerStatus struct {
	Name           string       `json:"name"`
	State          BreakerState `json:"state"`
	Failures       int          `json:"failures"`
	LastFailureAt  time.Time    `json:"last_failure_at,omitempty"`
	ProbesInFlight int          `json:"probes_in_flight"`
}

// LimiterStatus is a read-only view of one limiter's configuration.
type LimiterStatus struct {
	Name      string           `json:"name"`
	Algorithm LimiterAlgorithm `json:"algorithm"`
	Enabled   bool             `json:"enabled"`
}

// BulkheadStatus is a read-only view of one bulkhead's in-flight count.
type BulkheadStatus struct {
	Name          string `json:"name"`
	InFlight      int    `json:"in_flight"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// ProtectionSnapshot is the current state of all protection primitives.
type ProtectionSnapshot struct {
	Breakers  []BreakerStatus  `json:"breakers"`
	Limiters  []LimiterStatus  `json:"limiters"`
	Bulkheads []BulkheadStatus `json:"bulkheads"`
	TakenAt   time.Time        `json:"taken_at"`
}

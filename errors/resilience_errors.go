// engine/errors/resilience_errors.go
package errors

import "errors"

// CapacityExceeded and BreakerOpen are expected outcomes, not faults. They are
// sentinel values so callers can pick a fallback via errors.Is instead of
// treating the rejection as a failure to log and ignore.
var (
	ErrBreakerOpen      = errors.New("circuit breaker open")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrStaleConfig      = errors.New("resilience config expired")
	ErrInvalidConfig    = errors.New("invalid resilience config")
	ErrUnknownPrimitive = errors.New("unknown protection primitive")
)

// engine/audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

// Event kinds recorded by the engine.
const (
	KindCheckDenied           = "check_denied"
	KindBreakerRejected       = "breaker_rejected"
	KindLimiterRejected       = "limiter_rejected"
	KindBulkheadRejected      = "bulkhead_rejected"
	KindInvalidationEscalated = "invalidation_escalated"
	KindConfigChanged         = "config_changed"
)

// ProtectionEvent is one audit record: a denied check, a protection
// rejection, or an operational event worth keeping past process restart.
type ProtectionEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	Kind        string          `json:"kind"`
	PrincipalID string          `json:"principal_id,omitempty"`
	Primitive   string          `json:"primitive,omitempty"`
	CacheKey    string          `json:"cache_key,omitempty"`
	Detail      json.RawMessage `json:"detail,omitempty"`
}

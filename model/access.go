// engine/model/access.go
package model

import "time"

// CheckRequest is one permission check entering the engine.
type CheckRequest struct {
	PrincipalID string   `json:"principal_id" binding:"required"`
	Scope       string   `json:"scope" binding:"required"`
	ScopeID     string   `json:"scope_id"`
	Permission  string   `json:"permission" binding:"required"`
	ServerID    string   `json:"server_id"`
	Origin      string   `json:"origin"`
	Strategy    Strategy `json:"strategy"`
}

// LimitKey derives the composite rate-limit key for this request.
func (r CheckRequest) LimitKey() LimitKey {
	return LimitKey{UserID: r.PrincipalID, ServerID: r.ServerID, Origin: r.Origin}
}

// CheckDecision is the outcome of one permission check.
type CheckDecision struct {
	PrincipalID string    `json:"principal_id"`
	Permission  string    `json:"permission"`
	Allowed     bool      `json:"allowed"`
	Permissions []string  `json:"permissions"`
	Roles       []string  `json:"roles"`
	Source      string    `json:"source"`
	CheckedAt   time.Time `json:"checked_at"`
}

// BatchCheckRequest checks one permission for many principals in one scope.
type BatchCheckRequest struct {
	PrincipalIDs []string `json:"principal_ids" binding:"required"`
	Scope        string   `json:"scope" binding:"required"`
	ScopeID      string   `json:"scope_id"`
	Permission   string   `json:"permission" binding:"required"`
	ServerID     string   `json:"server_id"`
	Origin       string   `json:"origin"`
	Strategy     Strategy `json:"strategy"`
}

// BatchCheckDecision maps principal id to its decision.
type BatchCheckDecision struct {
	Results   map[string]CheckDecision `json:"results"`
	CheckedAt time.Time                `json:"checked_at"`
}

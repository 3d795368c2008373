// engine/model/invalidation.go
package model

import "time"

// CacheLevel selects which tiers an invalidation touches.
type CacheLevel string

const (
	CacheLevelL1  CacheLevel = "l1"
	CacheLevelL2  CacheLevel = "l2"
	CacheLevelAll CacheLevel = "all"
)

func (l CacheLevel) Valid() bool {
	switch l {
	case CacheLevelL1, CacheLevelL2, CacheLevelAll:
		return true
	}
	return false
}

// InvalidationMode makes the sync-vs-delayed choice an explicit policy
// parameter. Low-blast-radius writes invalidate synchronously; bulk role or
// pattern level writes enqueue.
type InvalidationMode string

const (
	InvalidationSync    InvalidationMode = "sync"
	InvalidationDelayed InvalidationMode = "delayed"
)

// DimensionType names one reverse-index family.
type DimensionType string

const (
	DimensionUser    DimensionType = "user"
	DimensionRole    DimensionType = "role"
	DimensionReason  DimensionType = "reason"
	DimensionPattern DimensionType = "pattern"
	DimensionServer  DimensionType = "server"
)

func (d DimensionType) Valid() bool {
	switch d {
	case DimensionUser, DimensionRole, DimensionReason, DimensionPattern, DimensionServer:
		return true
	}
	return false
}

// Dimensions carries the secondary attributes a cache key is indexed under.
type Dimensions struct {
	UserID   string `json:"user_id,omitempty"`
	RoleID   string `json:"role_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	ServerID string `json:"server_id,omitempty"`
}

// DimensionPair is one (type, value) coordinate of a Dimensions record.
type DimensionPair struct {
	Type  DimensionType `json:"type"`
	Value string        `json:"value"`
}

// Pairs returns the non-empty dimensions in a stable order. Batch invalidation
// groups pending tasks by the first pair in this order.
func (d Dimensions) Pairs() []DimensionPair {
	var pairs []DimensionPair
	if d.Reason != "" {
		pairs = append(pairs, DimensionPair{DimensionReason, d.Reason})
	}
	if d.Pattern != "" {
		pairs = append(pairs, DimensionPair{DimensionPattern, d.Pattern})
	}
	if d.UserID != "" {
		pairs = append(pairs, DimensionPair{DimensionUser, d.UserID})
	}
	if d.RoleID != "" {
		pairs = append(pairs, DimensionPair{DimensionRole, d.RoleID})
	}
	if d.ServerID != "" {
		pairs = append(pairs, DimensionPair{DimensionServer, d.ServerID})
	}
	return pairs
}

// InvalidationTask is a pending request to invalidate one cache key, or, when
// CacheKey is empty, everything indexed under its dimensions.
type InvalidationTask struct {
	ID         string     `json:"id"`
	CacheKey   string     `json:"cache_key,omitempty"`
	Level      CacheLevel `json:"level"`
	Reason     string     `json:"reason"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	Dimensions Dimensions `json:"dimensions"`
}

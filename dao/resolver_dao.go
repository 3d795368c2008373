// engine/dao/resolver_dao.go
package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	aegis_errors "github.com/dev-mohitbeniwal/aegis/engine/errors"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
	"github.com/dev-mohitbeniwal/aegis/engine/model"
	aegis_neo4j "github.com/dev-mohitbeniwal/aegis/engine/model/neo4j"
)

// ResolverDAO resolves effective permissions from the graph. It is the
// source of truth behind the cache tiers, so its queries must be pure reads.
type ResolverDAO struct {
	Driver neo4j.Driver
}

func NewResolverDAO(driver neo4j.Driver) *ResolverDAO {
	return &ResolverDAO{Driver: driver}
}

// resolveQuery walks the principal's roles including inherited ones and
// collects every permission that is either unscoped or scoped to the
// requested scope node.
var resolveQuery = fmt.Sprintf(`
MATCH (u:%s {id: $principalId})-[:%s]->(r:%s)
WITH u, r
OPTIONAL MATCH (r)-[:%s*0..]->(base:%s)
WITH u, collect(DISTINCT r.id) AS roles, collect(DISTINCT base) AS allRoles
UNWIND allRoles AS role
MATCH (role)-[:%s]->(p:%s)
WHERE NOT (p)-[:%s]->() OR (p)-[:%s]->(:Scope {kind: $scope, id: $scopeId})
RETURN u.id AS principalId, roles, collect(DISTINCT p.name) AS permissions
`,
	aegis_neo4j.LabelUser, aegis_neo4j.RelHasRole, aegis_neo4j.LabelRole,
	aegis_neo4j.RelInheritsFrom, aegis_neo4j.LabelRole,
	aegis_neo4j.RelHasPermission, aegis_neo4j.LabelPermission,
	aegis_neo4j.RelScopedTo, aegis_neo4j.RelScopedTo,
)

var resolveBatchQuery = fmt.Sprintf(`
UNWIND $principalIds AS pid
MATCH (u:%s {id: pid})-[:%s]->(r:%s)
WITH u, r
OPTIONAL MATCH (r)-[:%s*0..]->(base:%s)
WITH u, collect(DISTINCT r.id) AS roles, collect(DISTINCT base) AS allRoles
UNWIND allRoles AS role
MATCH (role)-[:%s]->(p:%s)
WHERE NOT (p)-[:%s]->() OR (p)-[:%s]->(:Scope {kind: $scope, id: $scopeId})
RETURN u.id AS principalId, roles, collect(DISTINCT p.name) AS permissions
`,
	aegis_neo4j.LabelUser, aegis_neo4j.RelHasRole, aegis_neo4j.LabelRole,
	aegis_neo4j.RelInheritsFrom, aegis_neo4j.LabelRole,
	aegis_neo4j.RelHasPermission, aegis_neo4j.LabelPermission,
	aegis_neo4j.RelScopedTo, aegis_neo4j.RelScopedTo,
)

func (dao *ResolverDAO) ResolvePermissions(ctx context.Context, principalID, scope, scopeID string) (model.PermissionSet, error) {
	start := time.Now()
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		records, err := transaction.Run(resolveQuery, map[string]interface{}{
			"principalId": principalID,
			"scope":       scope,
			"scopeId":     scopeID,
		})
		if err != nil {
			return nil, err
		}
		if records.Next() {
			return recordToPermissionSet(records.Record()), nil
		}
		return model.PermissionSet{ResolvedAt: time.Now()}, records.Err()
	})

	if err != nil {
		logger.Error("Failed to resolve permissions from graph",
			zap.String("principalId", principalID),
			zap.String("scope", scope),
			zap.Error(err))
		return model.PermissionSet{}, fmt.Errorf("%s: %w", err, aegis_errors.ErrResolverFailure)
	}

	logger.Debug("Resolved permissions from graph",
		zap.String("principalId", principalID),
		zap.Duration("duration", time.Since(start)))
	return result.(model.PermissionSet), nil
}

// ResolvePermissionsBatch resolves all principals in one query. Principals
// unknown to the graph come back as empty sets so callers can cache the
// negative result.
func (dao *ResolverDAO) ResolvePermissionsBatch(ctx context.Context, principalIDs []string, scope, scopeID string) (map[string]model.PermissionSet, error) {
	start := time.Now()
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		records, err := transaction.Run(resolveBatchQuery, map[string]interface{}{
			"principalIds": principalIDs,
			"scope":        scope,
			"scopeId":      scopeID,
		})
		if err != nil {
			return nil, err
		}
		sets := make(map[string]model.PermissionSet, len(principalIDs))
		for records.Next() {
			record := records.Record()
			pid, _ := record.Get("principalId")
			id, ok := pid.(string)
			if !ok {
				continue
			}
			sets[id] = recordToPermissionSet(record)
		}
		return sets, records.Err()
	})

	if err != nil {
		logger.Error("Failed to batch resolve permissions from graph",
			zap.Int("principals", len(principalIDs)),
			zap.String("scope", scope),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", err, aegis_errors.ErrResolverFailure)
	}

	sets := result.(map[string]model.PermissionSet)
	for _, id := range principalIDs {
		if _, ok := sets[id]; !ok {
			sets[id] = model.PermissionSet{ResolvedAt: time.Now()}
		}
	}

	logger.Debug("Batch resolved permissions from graph",
		zap.Int("principals", len(principalIDs)),
		zap.Duration("duration", time.Since(start)))
	return sets, nil
}

func recordToPermissionSet(record *neo4j.Record) model.PermissionSet {
	set := model.PermissionSet{ResolvedAt: time.Now()}
	if raw, ok := record.Get("permissions"); ok {
		if values, ok := raw.([]interface{}); ok {
			for _, v := range values {
				if s, ok := v.(string); ok {
					set.Permissions = append(set.Permissions, s)
				}
			}
		}
	}
	if raw, ok := record.Get("roles"); ok {
		if values, ok := raw.([]interface{}); ok {
			for _, v := range values {
				if s, ok := v.(string); ok {
					set.Roles = append(set.Roles, s)
				}
			}
		}
	}
	return set
}

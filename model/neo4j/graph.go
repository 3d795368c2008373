// engine/model/neo4j/graph.go
package aegis_neo4j

// Node labels and relationship types used by the source-of-truth resolver.
const (
	LabelUser       = "User"
	LabelRole       = "Role"
	LabelPermission = "Permission"

	RelHasRole       = "HAS_ROLE"
	RelHasPermission = "HAS_PERMISSION"
	RelInheritsFrom  = "INHERITS_FROM"
	RelScopedTo      = "SCOPED_TO"
)

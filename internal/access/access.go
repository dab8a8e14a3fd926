package access

import "github.com/casafield/leadpipe/internal/database/models"

// Permission strings consulted before every protected operation.
const (
	PermLeadsCreate   = "leads:create"
	PermLeadsRead     = "leads:read"
	PermLeadsUpdate   = "leads:update"
	PermLeadsDelete   = "leads:delete"
	PermLeadsAssign   = "leads:assign"
	PermLeadsImport   = "leads:import"
	PermLeadsExport   = "leads:export"
	PermPipelineRead  = "pipeline:read"
	PermUsersRead     = "users:read"
	PermUsersCreate   = "users:create"
	PermUsersUpdate   = "users:update"
	PermUsersDelete   = "users:delete"
	PermAuditRead     = "audit:read"
	PermAnalyticsRead = "analytics:read"
)

// RolePermissions maps each role to its full permission set. The map is
// copied into the Checker at construction so callers cannot mutate it.
type RolePermissions map[models.Role][]string

// DefaultRolePermissions is the shipping permission table.
func DefaultRolePermissions() RolePermissions {
	return RolePermissions{
		models.RoleAdmin: {
			PermLeadsCreate, PermLeadsRead, PermLeadsUpdate, PermLeadsDelete,
			PermLeadsAssign, PermLeadsImport, PermLeadsExport,
			PermPipelineRead,
			PermUsersRead, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
			PermAuditRead, PermAnalyticsRead,
		},
		models.RoleAcquisitionRep: {
			PermLeadsCreate, PermLeadsRead, PermLeadsUpdate,
			PermLeadsImport, PermLeadsExport,
			PermPipelineRead, PermAnalyticsRead,
		},
		models.RoleDispositionManager: {
			PermLeadsRead, PermLeadsUpdate, PermLeadsDelete, PermLeadsAssign,
			PermLeadsExport,
			PermPipelineRead, PermUsersRead, PermAnalyticsRead,
		},
	}
}

// Checker answers permission queries against an immutable role table.
// Unknown roles get an empty permission set (deny by default).
type Checker struct {
	perms map[models.Role]map[string]bool
}

func NewChecker(table RolePermissions) *Checker {
	perms := make(map[models.Role]map[string]bool, len(table))
	for role, list := range table {
		set := make(map[string]bool, len(list))
		for _, p := range list {
			set[p] = true
		}
		perms[role] = set
	}
	return &Checker{perms: perms}
}

// HasPermission is a pure lookup; it performs no I/O.
func (c *Checker) HasPermission(role models.Role, permission string) bool {
	set, ok := c.perms[role]
	if !ok {
		return false
	}
	return set[permission]
}

// PermissionsFor returns the permission strings for a role, for snapshotting
// onto user records. The returned slice is a copy.
func (c *Checker) PermissionsFor(role models.Role) []string {
	set, ok := c.perms[role]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

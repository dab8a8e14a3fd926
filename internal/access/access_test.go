package access_test

import (
	"testing"

	"github.com/casafield/leadpipe/internal/access"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/stretchr/testify/assert"
)

func TestChecker_HasPermission(t *testing.T) {
	checker := access.NewChecker(access.DefaultRolePermissions())

	tests := []struct {
		name       string
		role       models.Role
		permission string
		want       bool
	}{
		{"admin deletes users", models.RoleAdmin, access.PermUsersDelete, true},
		{"admin reads audit", models.RoleAdmin, access.PermAuditRead, true},
		{"acquisition rep creates leads", models.RoleAcquisitionRep, access.PermLeadsCreate, true},
		{"acquisition rep imports leads", models.RoleAcquisitionRep, access.PermLeadsImport, true},
		{"acquisition rep cannot delete leads", models.RoleAcquisitionRep, access.PermLeadsDelete, false},
		{"acquisition rep cannot assign leads", models.RoleAcquisitionRep, access.PermLeadsAssign, false},
		{"acquisition rep cannot read audit", models.RoleAcquisitionRep, access.PermAuditRead, false},
		{"disposition manager assigns leads", models.RoleDispositionManager, access.PermLeadsAssign, true},
		{"disposition manager deletes leads", models.RoleDispositionManager, access.PermLeadsDelete, true},
		{"disposition manager cannot create leads", models.RoleDispositionManager, access.PermLeadsCreate, false},
		{"disposition manager cannot manage users", models.RoleDispositionManager, access.PermUsersDelete, false},
		{"disposition manager reads users", models.RoleDispositionManager, access.PermUsersRead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checker.HasPermission(tt.role, tt.permission))
		})
	}
}

func TestChecker_DenyByDefault(t *testing.T) {
	checker := access.NewChecker(access.DefaultRolePermissions())

	// Unknown roles and unknown permissions are both denied.
	assert.False(t, checker.HasPermission("intern", access.PermLeadsRead))
	assert.False(t, checker.HasPermission(models.RoleAdmin, "leads:teleport"))
	assert.False(t, checker.HasPermission("", access.PermLeadsRead))
}

func TestChecker_PermissionsFor(t *testing.T) {
	checker := access.NewChecker(access.DefaultRolePermissions())

	perms := checker.PermissionsFor(models.RoleAcquisitionRep)
	assert.NotEmpty(t, perms)
	assert.Contains(t, perms, access.PermLeadsCreate)
	assert.NotContains(t, perms, access.PermUsersDelete)

	// The returned slice is a copy; mutating it must not poison the checker.
	for i := range perms {
		perms[i] = "tampered"
	}
	assert.True(t, checker.HasPermission(models.RoleAcquisitionRep, access.PermLeadsCreate))

	assert.Nil(t, checker.PermissionsFor("intern"))
}

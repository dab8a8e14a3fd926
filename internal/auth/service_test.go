package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/casafield/leadpipe/internal/access"
	"github.com/casafield/leadpipe/internal/auth"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthService(t *testing.T) (*auth.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	jwtService := auth.NewJWTService("test-secret", time.Hour)
	checker := access.NewChecker(access.DefaultRolePermissions())
	return auth.NewService(db, jwtService, checker, nil, nil), db
}

func TestService_Register(t *testing.T) {
	svc, db := setupAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, auth.RegisterInput{
		Email:      "owner@example.com",
		Password:   "Sup3rSecret",
		Name:       "Olivia Owner",
		TenantName: "Casafield Homes",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	// Registration creates the tenant and its first admin.
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Equal(t, "Casafield Homes", resp.User.Tenant.Name)
	assert.Contains(t, resp.User.Permissions, access.PermUsersDelete)
	assert.True(t, resp.User.IsActive)

	var tenantCount int64
	require.NoError(t, db.Model(&models.Tenant{}).Count(&tenantCount).Error)
	assert.Equal(t, int64(1), tenantCount)

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, auth.RegisterInput{
			Email:    "owner@example.com",
			Password: "An0therSecret",
			Name:     "Impostor",
		})
		assert.ErrorIs(t, err, auth.ErrUserExists)
	})
}

func TestService_Login(t *testing.T) {
	svc, db := setupAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterInput{
		Email:    "rep@example.com",
		Password: "Sup3rSecret",
		Name:     "Rita Rep",
	})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.Login(ctx, auth.LoginInput{
			Email:    "rep@example.com",
			Password: "Sup3rSecret",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.GreaterOrEqual(t, resp.User.LoginCount, 1)
		assert.NotNil(t, resp.User.LastLoginAt)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{
			Email:    "rep@example.com",
			Password: "WrongSecret1",
		})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.LoginInput{
			Email:    "nobody@example.com",
			Password: "Sup3rSecret",
		})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive account", func(t *testing.T) {
		require.NoError(t, db.Model(&models.User{}).
			Where("email = ?", "rep@example.com").
			Update("is_active", false).Error)

		_, err := svc.Login(ctx, auth.LoginInput{
			Email:    "rep@example.com",
			Password: "Sup3rSecret",
		})
		assert.ErrorIs(t, err, auth.ErrInactiveUser)
	})
}

func TestService_CreateUser(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()

	owner, err := svc.Register(ctx, auth.RegisterInput{
		Email:    "owner@example.com",
		Password: "Sup3rSecret",
		Name:     "Olivia Owner",
	})
	require.NoError(t, err)
	tenantID := owner.User.TenantID

	user, err := svc.CreateUser(ctx, tenantID, auth.CreateUserInput{
		Email:    "newrep@example.com",
		Password: "Sup3rSecret",
		Name:     "Nina New",
	}, owner.User.ID)
	require.NoError(t, err)

	// Role defaults to acquisition_rep with its snapshot.
	assert.Equal(t, models.RoleAcquisitionRep, user.Role)
	assert.Equal(t, tenantID, user.TenantID)
	assert.Contains(t, user.Permissions, access.PermLeadsCreate)
	assert.NotContains(t, user.Permissions, access.PermLeadsDelete)

	_, err = svc.CreateUser(ctx, tenantID, auth.CreateUserInput{
		Email:    "newrep@example.com",
		Password: "Sup3rSecret",
		Name:     "Duplicate",
	}, owner.User.ID)
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestService_ChangeRole(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()

	owner, err := svc.Register(ctx, auth.RegisterInput{
		Email:    "owner@example.com",
		Password: "Sup3rSecret",
		Name:     "Olivia Owner",
	})
	require.NoError(t, err)
	tenantID := owner.User.TenantID

	rep, err := svc.CreateUser(ctx, tenantID, auth.CreateUserInput{
		Email:    "rep@example.com",
		Password: "Sup3rSecret",
		Name:     "Rita Rep",
	}, owner.User.ID)
	require.NoError(t, err)

	t.Run("refreshes the permission snapshot", func(t *testing.T) {
		updated, err := svc.ChangeRole(ctx, tenantID, rep.ID, models.RoleDispositionManager, owner.User.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleDispositionManager, updated.Role)
		assert.Contains(t, updated.Permissions, access.PermLeadsAssign)
		assert.NotContains(t, updated.Permissions, access.PermLeadsCreate)
	})

	t.Run("cross-tenant change reports not found", func(t *testing.T) {
		_, err := svc.ChangeRole(ctx, uuid.New(), rep.ID, models.RoleAdmin, owner.User.ID)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

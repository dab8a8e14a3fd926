package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casafield/leadpipe/internal/access"
	"github.com/casafield/leadpipe/internal/api/middleware"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth(t *testing.T) {
	jwtService := testutil.CreateTestJWTService()
	userID := uuid.New()
	tenantID := uuid.New()

	token, err := jwtService.GenerateToken(userID, tenantID, "rep@example.com", "acquisition_rep")
	require.NoError(t, err)

	var gotUserID, gotTenantID uuid.UUID
	var gotEmail, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = middleware.GetUserID(r.Context())
		gotTenantID = middleware.GetTenantID(r.Context())
		gotEmail = middleware.GetUserEmail(r.Context())
		gotRole = middleware.GetUserRole(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Auth(jwtService)(next)

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/leads", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/leads", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/leads", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, gotUserID)
		assert.Equal(t, tenantID, gotTenantID)
		assert.Equal(t, "rep@example.com", gotEmail)
		assert.Equal(t, "acquisition_rep", gotRole)
	})

	t.Run("cookie fallback", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/leads", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, gotUserID)
	})
}

func TestRequirePermission(t *testing.T) {
	checker := access.NewChecker(access.DefaultRolePermissions())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(nil, logger)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	authedRequest := func(role string) *http.Request {
		req := httptest.NewRequest("DELETE", "/api/v1/leads/abc", nil)
		ctx := req.Context()
		ctx = context.WithValue(ctx, middleware.UserIDKey, uuid.New())
		ctx = context.WithValue(ctx, middleware.TenantIDKey, uuid.New())
		ctx = context.WithValue(ctx, middleware.UserEmailKey, "rep@example.com")
		ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
		return req.WithContext(ctx)
	}

	t.Run("allowed", func(t *testing.T) {
		handler := middleware.RequirePermission(checker, recorder, access.PermLeadsDelete)(next)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, authedRequest("admin"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("denied", func(t *testing.T) {
		handler := middleware.RequirePermission(checker, recorder, access.PermLeadsDelete)(next)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, authedRequest("acquisition_rep"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown role denied", func(t *testing.T) {
		handler := middleware.RequirePermission(checker, recorder, access.PermLeadsRead)(next)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, authedRequest("janitor"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

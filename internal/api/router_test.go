package api_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casafield/leadpipe/internal/api"
	"github.com/casafield/leadpipe/internal/api/dto"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/auth"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/internal/leads"
	"github.com/casafield/leadpipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*api.Router, *testutil.TestSetup) {
	t.Helper()

	ts := testutil.NewTestContext(t)
	t.Cleanup(ts.Cleanup)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(nil, logger)
	authService := auth.NewService(ts.DB, ts.JWTService, ts.Checker, recorder, nil)
	auditService := audit.NewService(ts.DB, nil, logger)

	router := api.NewRouter(api.RouterConfig{
		DB:           ts.DB,
		Logger:       logger,
		JWTService:   ts.JWTService,
		AuthService:  authService,
		Checker:      ts.Checker,
		Recorder:     recorder,
		AuditService: auditService,
		ExportDir:    t.TempDir(),
	})
	return router, ts
}

func TestRouter_RequiresAuth(t *testing.T) {
	router, _ := setupRouter(t)

	paths := []string{"/api/v1/leads", "/api/v1/users", "/api/v1/audit", "/api/v1/me"}
	for _, path := range paths {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.UnauthenticatedRequest(t, "GET", path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRouter_CreateLead(t *testing.T) {
	router, ts := setupRouter(t)

	t.Run("created", func(t *testing.T) {
		body := map[string]interface{}{
			"name":            "Alice Seller",
			"phone":           "+1 (555) 123-4567",
			"email":           "alice@example.com",
			"estimated_value": 250000,
			"tags":            []string{"probate"},
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/leads", body, ts.Token))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var lead models.Lead
		testutil.ParseJSONResponse(t, rr, &lead)
		assert.Equal(t, "+15551234567", lead.Phone)
		assert.Equal(t, models.LeadStatusNew, lead.Status)
		assert.Equal(t, ts.Tenant.ID, lead.TenantID)
	})

	t.Run("validation failure", func(t *testing.T) {
		body := map[string]interface{}{"name": "No Phone"}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/leads", body, ts.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "phone")
	})

	t.Run("duplicate phone", func(t *testing.T) {
		body := map[string]interface{}{"name": "Alice Again", "phone": "+15551234567"}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/leads", body, ts.Token))
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestRouter_TenantIsolation(t *testing.T) {
	router, ts := setupRouter(t)

	other := testutil.CreateTestTenant(t, ts.DB)
	foreign := testutil.CreateTestLead(t, ts.DB, other.ID, "+15559990001")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/leads/"+foreign.ID.String(), nil, ts.Token))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestRouter_PermissionDenied(t *testing.T) {
	router, ts := setupRouter(t)

	rep := testutil.CreateTestUser(t, ts.DB, ts.Tenant, models.RoleAcquisitionRep)
	repToken := testutil.GenerateTestToken(t, ts.JWTService, rep)
	lead := testutil.CreateTestLead(t, ts.DB, ts.Tenant.ID, "+15559990002")

	t.Run("rep cannot delete leads", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/leads/"+lead.ID.String(), nil, repToken))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("rep cannot read the audit trail", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/audit", nil, repToken))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("admin can delete leads", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/leads/"+lead.ID.String(), nil, ts.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestRouter_Pipeline(t *testing.T) {
	router, ts := setupRouter(t)

	testutil.CreateTestLead(t, ts.DB, ts.Tenant.ID, "+15559990003")
	testutil.CreateTestLead(t, ts.DB, ts.Tenant.ID, "+15559990004")

	// The board ignores a status filter instead of rejecting it.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/leads/pipeline?status=closed", nil, ts.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var board leads.Pipeline
	testutil.ParseJSONResponse(t, rr, &board)
	assert.Equal(t, 2, board.Total)
	require.Len(t, board.Buckets, 5)
	assert.Equal(t, models.LeadStatusNew, board.Buckets[0].Status)
	assert.Equal(t, 2, board.Buckets[0].Count)
}

func TestRouter_Me(t *testing.T) {
	router, ts := setupRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/me", nil, ts.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var me models.User
	testutil.ParseJSONResponse(t, rr, &me)
	assert.Equal(t, ts.User.ID, me.ID)
	assert.Empty(t, me.PasswordHash)
}

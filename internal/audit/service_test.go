package audit_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/internal/testutil"
	"github.com/casafield/leadpipe/pkg/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T) (*audit.Service, *crypto.Encryptor, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	return audit.NewService(db, enc, slog.Default()), enc, db
}

func TestService_Write(t *testing.T) {
	svc, enc, _ := setupAuditService(t)
	ctx := context.Background()
	tenantID := uuid.New()
	actorID := uuid.New()

	t.Run("scores and stores the event", func(t *testing.T) {
		log, err := svc.Write(ctx, audit.Event{
			TenantID:   tenantID,
			Type:       models.EventRoleChanged,
			Severity:   models.SeverityHigh,
			ActorID:    &actorID,
			ActorEmail: "admin@example.com",
			Resource:   "user",
			Action:     "role_change",
			Metadata:   map[string]interface{}{"from": "acquisition_rep", "to": "admin"},
		})
		require.NoError(t, err)

		assert.Equal(t, 90, log.RiskScore)
		assert.NotEmpty(t, log.RiskFactors)
		assert.False(t, log.RetentionDate.IsZero())
		assert.False(t, log.IsSensitive)

		// Plain metadata stays readable JSON.
		var meta map[string]string
		require.NoError(t, json.Unmarshal([]byte(log.Metadata), &meta))
		assert.Equal(t, "admin", meta["to"])
	})

	t.Run("defaults blank severity to info", func(t *testing.T) {
		log, err := svc.Write(ctx, audit.Event{
			TenantID: tenantID,
			Type:     models.EventLeadCreated,
			Resource: "lead",
			Action:   "create",
		})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityInfo, log.Severity)
		assert.Equal(t, 10, log.RiskScore)
	})

	t.Run("encrypts sensitive metadata at rest", func(t *testing.T) {
		log, err := svc.Write(ctx, audit.Event{
			TenantID:    tenantID,
			Type:        models.EventLeadExported,
			Severity:    models.SeverityHigh,
			Resource:    "export",
			Action:      "create",
			Metadata:    map[string]interface{}{"phone": "+15551234567"},
			IsSensitive: true,
		})
		require.NoError(t, err)
		assert.True(t, log.IsSensitive)
		assert.NotContains(t, log.Metadata, "+15551234567")

		plain, err := enc.DecryptString(log.Metadata)
		require.NoError(t, err)
		assert.Contains(t, plain, "+15551234567")
	})
}

func TestService_PurgeExpired(t *testing.T) {
	svc, _, db := setupAuditService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := svc.Write(ctx, audit.Event{
		TenantID: tenantID,
		Type:     models.EventLeadCreated,
		Resource: "lead",
		Action:   "create",
	})
	require.NoError(t, err)

	// Backdate one log past its retention window.
	expired := models.AuditLog{
		TenantID:      tenantID,
		EventType:     models.EventUserLogin,
		Severity:      models.SeverityInfo,
		Resource:      "user",
		Action:        "login",
		RetentionDate: time.Now().AddDate(0, 0, -1),
	}
	require.NoError(t, db.Create(&expired).Error)

	purged, err := svc.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var remaining int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestService_AnonymizeActor(t *testing.T) {
	svc, _, db := setupAuditService(t)
	ctx := context.Background()
	tenantID := uuid.New()
	actorID := uuid.New()
	otherActor := uuid.New()

	for _, id := range []uuid.UUID{actorID, actorID, otherActor} {
		a := id
		_, err := svc.Write(ctx, audit.Event{
			TenantID:   tenantID,
			Type:       models.EventLeadUpdated,
			ActorID:    &a,
			ActorEmail: "someone@example.com",
			Resource:   "lead",
			Action:     "update",
		})
		require.NoError(t, err)
	}

	updated, err := svc.AnonymizeActor(ctx, tenantID, actorID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	var scrubbed []models.AuditLog
	require.NoError(t, db.Where("is_anonymized = ?", true).Find(&scrubbed).Error)
	require.Len(t, scrubbed, 2)
	for _, log := range scrubbed {
		assert.Nil(t, log.ActorID)
		assert.Empty(t, log.ActorEmail)
	}

	// The other actor's trail is untouched.
	var intact models.AuditLog
	require.NoError(t, db.Where("actor_id = ?", otherActor).First(&intact).Error)
	assert.Equal(t, "someone@example.com", intact.ActorEmail)

	// Running again is a no-op.
	updated, err = svc.AnonymizeActor(ctx, tenantID, actorID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
}

func TestService_TenantStats(t *testing.T) {
	svc, _, _ := setupAuditService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("empty tenant", func(t *testing.T) {
		stats, err := svc.TenantStats(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Total)
	})

	events := []audit.Event{
		{TenantID: tenantID, Type: models.EventLeadCreated, Severity: models.SeverityInfo, Resource: "lead", Action: "create"},
		{TenantID: tenantID, Type: models.EventLeadCreated, Severity: models.SeverityInfo, Resource: "lead", Action: "create"},
		{TenantID: tenantID, Type: models.EventRoleChanged, Severity: models.SeverityHigh, Resource: "user", Action: "role_change"},
		{TenantID: tenantID, Type: models.EventLeadExported, Severity: models.SeverityHigh, Resource: "export", Action: "create", IsSensitive: true},
		// Another tenant's event must not leak into the stats.
		{TenantID: uuid.New(), Type: models.EventLeadCreated, Severity: models.SeverityInfo, Resource: "lead", Action: "create"},
	}
	for _, ev := range events {
		_, err := svc.Write(ctx, ev)
		require.NoError(t, err)
	}

	stats, err := svc.TenantStats(ctx, tenantID)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.BySeverity[string(models.SeverityInfo)])
	assert.Equal(t, int64(2), stats.BySeverity[string(models.SeverityHigh)])
	assert.Equal(t, int64(2), stats.ByEventType[string(models.EventLeadCreated)])
	assert.Equal(t, int64(2), stats.HighRisk) // role change scores 90, export caps at 100
	assert.Equal(t, int64(1), stats.Sensitive)
	assert.Greater(t, stats.AverageRisk, 0.0)
}

func TestService_List(t *testing.T) {
	svc, _, _ := setupAuditService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	types := []models.AuditEventType{
		models.EventLeadCreated,
		models.EventLeadDeleted,
		models.EventLeadDeleted,
	}
	for _, typ := range types {
		_, err := svc.Write(ctx, audit.Event{
			TenantID: tenantID,
			Type:     typ,
			Severity: models.SeverityInfo,
			Resource: "lead",
			Action:   "x",
		})
		require.NoError(t, err)
	}

	logs, total, err := svc.List(ctx, tenantID, "", "", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, logs, 3)

	logs, total, err = svc.List(ctx, tenantID, models.EventLeadDeleted, "", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)

	_, total, err = svc.List(ctx, uuid.New(), "", "", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

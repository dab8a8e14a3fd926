package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/pkg/crypto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service persists audit events. It runs in the worker process; the API
// side only ever talks to the Recorder.
type Service struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
	logger    *slog.Logger
}

func NewService(db *gorm.DB, encryptor *crypto.Encryptor, logger *slog.Logger) *Service {
	return &Service{db: db, encryptor: encryptor, logger: logger}
}

// Write scores the event, computes its retention date and stores it.
// Sensitive metadata is age-encrypted before it touches the table.
func (s *Service) Write(ctx context.Context, ev Event) (*models.AuditLog, error) {
	now := time.Now().UTC()

	severity := ev.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}

	score, factors := Score(ev.Type, severity, ev.IsSensitive, ev.ComplianceFrameworks)

	metadata := ""
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata: %w", err)
		}
		metadata = string(raw)
		if ev.IsSensitive && s.encryptor != nil {
			metadata, err = s.encryptor.EncryptString(metadata)
			if err != nil {
				return nil, fmt.Errorf("encrypting metadata: %w", err)
			}
		}
	}

	log := models.AuditLog{
		TenantID:             ev.TenantID,
		EventType:            ev.Type,
		Severity:             severity,
		ActorID:              ev.ActorID,
		ActorEmail:           ev.ActorEmail,
		Resource:             ev.Resource,
		Action:               ev.Action,
		Metadata:             metadata,
		RiskScore:            score,
		RiskFactors:          factors,
		ComplianceFrameworks: ev.ComplianceFrameworks,
		RetentionDate:        RetentionDate(now, ev.ComplianceFrameworks, severity),
		IsSensitive:          ev.IsSensitive,
	}

	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return nil, fmt.Errorf("writing audit log: %w", err)
	}
	return &log, nil
}

// PurgeExpired deletes logs whose retention window has passed.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("retention_date < ?", now).
		Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("purging audit logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// AnonymizeActor scrubs a departed user's identity from a tenant's logs
// while keeping the events themselves for compliance.
func (s *Service) AnonymizeActor(ctx context.Context, tenantID, actorID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Where("tenant_id = ? AND actor_id = ? AND is_anonymized = ?", tenantID, actorID, false).
		Updates(map[string]interface{}{
			"actor_id":      nil,
			"actor_email":   "",
			"is_anonymized": true,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("anonymizing audit logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Stats aggregates a tenant's audit trail for the compliance dashboard.
type Stats struct {
	Total       int64            `json:"total"`
	BySeverity  map[string]int64 `json:"by_severity"`
	ByEventType map[string]int64 `json:"by_event_type"`
	AverageRisk float64          `json:"average_risk"`
	HighRisk    int64            `json:"high_risk"` // score >= 70
	Sensitive   int64            `json:"sensitive"`
}

func (s *Service) TenantStats(ctx context.Context, tenantID uuid.UUID) (*Stats, error) {
	stats := &Stats{
		BySeverity:  make(map[string]int64),
		ByEventType: make(map[string]int64),
	}

	scoped := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", tenantID)
	}

	if err := scoped().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if stats.Total == 0 {
		return stats, nil
	}

	type sevRow struct {
		Severity string
		Count    int64
	}
	var sevRows []sevRow
	if err := scoped().
		Select("severity, COUNT(*) as count").
		Group("severity").
		Scan(&sevRows).Error; err != nil {
		return nil, err
	}
	for _, row := range sevRows {
		stats.BySeverity[row.Severity] = row.Count
	}

	type typeRow struct {
		EventType string
		Count     int64
	}
	var typeRows []typeRow
	if err := scoped().
		Select("event_type, COUNT(*) as count").
		Group("event_type").
		Scan(&typeRows).Error; err != nil {
		return nil, err
	}
	for _, row := range typeRows {
		stats.ByEventType[row.EventType] = row.Count
	}

	if err := scoped().Select("AVG(risk_score)").Scan(&stats.AverageRisk).Error; err != nil {
		return nil, err
	}
	if err := scoped().Where("risk_score >= ?", 70).Count(&stats.HighRisk).Error; err != nil {
		return nil, err
	}
	if err := scoped().Where("is_sensitive = ?", true).Count(&stats.Sensitive).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// List returns a page of a tenant's audit logs, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, eventType models.AuditEventType, severity models.Severity, offset, limit int) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", tenantID)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if severity != "" {
		query = query.Where("severity = ?", severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditEventType string

const (
	EventLeadCreated   AuditEventType = "lead_created"
	EventLeadUpdated   AuditEventType = "lead_updated"
	EventLeadDeleted   AuditEventType = "lead_deleted"
	EventLeadAssigned  AuditEventType = "lead_assigned"
	EventLeadExported  AuditEventType = "lead_exported"
	EventLeadImported  AuditEventType = "lead_imported"
	EventUserLogin     AuditEventType = "user_login"
	EventUserCreated   AuditEventType = "user_created"
	EventRoleChanged   AuditEventType = "role_changed"
	EventAccessDenied  AuditEventType = "access_denied"
	EventDataRetention AuditEventType = "data_retention"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AuditLog is written exclusively by the worker; the API process only
// enqueues events and never blocks on this table.
type AuditLog struct {
	Base
	TenantID uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`

	EventType AuditEventType `gorm:"not null;index" json:"event_type"`
	Severity  Severity       `gorm:"not null;index;default:'info'" json:"severity"`

	ActorID    *uuid.UUID `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	ActorEmail string     `json:"actor_email,omitempty"`

	Resource string `gorm:"index" json:"resource"` // lead, user, export
	Action   string `json:"action"`                // create, update, delete, ...

	// Free-form event context. Age-encrypted at rest when IsSensitive.
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`

	// Derived at write time, never recomputed.
	RiskScore   int      `gorm:"index" json:"risk_score"`
	RiskFactors []string `gorm:"serializer:json" json:"risk_factors,omitempty"`

	ComplianceFrameworks []string  `gorm:"serializer:json" json:"compliance_frameworks,omitempty"`
	RetentionDate        time.Time `gorm:"index" json:"retention_date"`

	IsSensitive  bool `gorm:"default:false" json:"is_sensitive"`
	IsAnonymized bool `gorm:"default:false" json:"is_anonymized"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

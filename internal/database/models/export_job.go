package models

import "github.com/google/uuid"

type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportJob tracks an asynchronous lead export. Clients poll its status.
type ExportJob struct {
	Base
	TenantID    uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	RequestedBy uuid.UUID `gorm:"type:uuid" json:"requested_by"`

	Format string       `gorm:"default:'xlsx'" json:"format"`
	Status ExportStatus `gorm:"not null;index;default:'pending'" json:"status"`

	// Lead filters applied by the worker (JSON)
	Filters string `gorm:"type:text;default:'{}'" json:"filters,omitempty"`

	FilePath    string `json:"-"`
	RowCount    int    `gorm:"default:0" json:"row_count"`
	Error       string `json:"error,omitempty"`
	CompletedAt *int64 `json:"completed_at,omitempty"`
}

func (ExportJob) TableName() string {
	return "export_jobs"
}

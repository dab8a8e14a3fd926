package tasks

import (
	"encoding/json"

	"github.com/casafield/leadpipe/internal/audit"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names. The audit record type lives in the audit package so the
// recorder can enqueue it without importing this package.
const (
	TypeAuditRecord    = audit.TaskTypeRecord
	TypeExportLeads    = "export:leads"
	TypeRetentionSweep = "audit:retention_sweep"
	TypeAnonymizeActor = "audit:anonymize_actor"
)

// ExportLeadsPayload carries the job id of a pending export.
type ExportLeadsPayload struct {
	JobID    uuid.UUID `json:"job_id"`
	TenantID uuid.UUID `json:"tenant_id"`
}

func NewExportLeadsTask(payload ExportLeadsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExportLeads, data), nil
}

// RetentionSweepPayload is empty - the sweep covers all tenants.
type RetentionSweepPayload struct{}

func NewRetentionSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRetentionSweep, nil)
}

// AnonymizeActorPayload identifies the departed user whose audit trail
// should be scrubbed.
type AnonymizeActorPayload struct {
	TenantID uuid.UUID `json:"tenant_id"`
	ActorID  uuid.UUID `json:"actor_id"`
}

func NewAnonymizeActorTask(payload AnonymizeActorPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAnonymizeActor, data), nil
}

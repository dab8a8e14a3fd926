package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskTypeRecord is the asynq task carrying one audit event to the worker.
const TaskTypeRecord = "audit:record"

// Event is the wire form of an audit record before scoring.
type Event struct {
	TenantID             uuid.UUID              `json:"tenant_id"`
	Type                 models.AuditEventType  `json:"type"`
	Severity             models.Severity        `json:"severity"`
	ActorID              *uuid.UUID             `json:"actor_id,omitempty"`
	ActorEmail           string                 `json:"actor_email,omitempty"`
	Resource             string                 `json:"resource"`
	Action               string                 `json:"action"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	IsSensitive          bool                   `json:"is_sensitive,omitempty"`
	ComplianceFrameworks []string               `json:"compliance_frameworks,omitempty"`
}

// Recorder is the write side of the audit channel. Record never returns an
// error: enqueue failures are logged and dropped so the primary operation
// is never blocked or reversed by its audit trail.
type Recorder struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewRecorder(client *asynq.Client, logger *slog.Logger) *Recorder {
	return &Recorder{client: client, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.client == nil {
		return
	}
	if ev.Severity == "" {
		ev.Severity = models.SeverityInfo
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("marshaling audit event", "type", ev.Type, "error", err)
		return
	}

	task := asynq.NewTask(TaskTypeRecord, payload)
	if _, err := r.client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
		r.logger.Error("enqueueing audit event", "type", ev.Type, "error", err)
	}
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/exports"
	"github.com/hibiken/asynq"
)

type Handler struct {
	auditService  *audit.Service
	exportService *exports.Service
	logger        *slog.Logger
}

func NewHandler(auditService *audit.Service, exportService *exports.Service, logger *slog.Logger) *Handler {
	return &Handler{
		auditService:  auditService,
		exportService: exportService,
		logger:        logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAuditRecord, h.HandleAuditRecord)
	mux.HandleFunc(TypeExportLeads, h.HandleExportLeads)
	mux.HandleFunc(TypeRetentionSweep, h.HandleRetentionSweep)
	mux.HandleFunc(TypeAnonymizeActor, h.HandleAnonymizeActor)
}

func (h *Handler) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	var ev audit.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	log, err := h.auditService.Write(ctx, ev)
	if err != nil {
		h.logger.Error("writing audit record failed",
			"tenant_id", ev.TenantID,
			"type", ev.Type,
			"error", err,
		)
		return err
	}

	h.logger.Debug("audit record written",
		"tenant_id", ev.TenantID,
		"type", ev.Type,
		"risk_score", log.RiskScore,
	)
	return nil
}

func (h *Handler) HandleExportLeads(ctx context.Context, t *asynq.Task) error {
	var payload ExportLeadsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("starting lead export",
		"job_id", payload.JobID,
		"tenant_id", payload.TenantID,
	)

	if err := h.exportService.Run(ctx, payload.JobID); err != nil {
		h.logger.Error("lead export failed", "job_id", payload.JobID, "error", err)
		return err
	}

	return nil
}

func (h *Handler) HandleRetentionSweep(ctx context.Context, t *asynq.Task) error {
	purged, err := h.auditService.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		h.logger.Error("retention sweep failed", "error", err)
		return err
	}

	h.logger.Info("retention sweep completed", "purged", purged)
	return nil
}

func (h *Handler) HandleAnonymizeActor(ctx context.Context, t *asynq.Task) error {
	var payload AnonymizeActorPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	updated, err := h.auditService.AnonymizeActor(ctx, payload.TenantID, payload.ActorID)
	if err != nil {
		h.logger.Error("anonymizing actor failed",
			"tenant_id", payload.TenantID,
			"actor_id", payload.ActorID,
			"error", err,
		)
		return err
	}

	h.logger.Info("anonymized audit trail",
		"tenant_id", payload.TenantID,
		"actor_id", payload.ActorID,
		"updated", updated,
	)
	return nil
}

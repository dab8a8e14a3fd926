package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/casafield/leadpipe/internal/api/dto"
	"github.com/casafield/leadpipe/internal/api/middleware"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/internal/exports"
	"github.com/casafield/leadpipe/internal/leads"
	"github.com/casafield/leadpipe/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type ExportHandler struct {
	exportService *exports.Service
	asynqClient   *asynq.Client
	logger        *slog.Logger
}

func NewExportHandler(exportService *exports.Service, asynqClient *asynq.Client, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		asynqClient:   asynqClient,
		logger:        logger,
	}
}

// CreateExportRequest mirrors the lead list filters.
type CreateExportRequest struct {
	Status     string `json:"status,omitempty"`
	Priority   string `json:"priority,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Search     string `json:"search,omitempty"`
}

func (r CreateExportRequest) toFilters() (leads.Filters, map[string]string) {
	var f leads.Filters
	errs := make(map[string]string)

	if r.Status != "" {
		status := models.LeadStatus(r.Status)
		if !status.Valid() {
			errs["status"] = "Invalid status"
		}
		f.Status = &status
	}
	if r.Priority != "" {
		priority := models.LeadPriority(r.Priority)
		if !priority.Valid() {
			errs["priority"] = "Invalid priority"
		}
		f.Priority = &priority
	}
	if r.AssignedTo != "" {
		id, err := uuid.Parse(r.AssignedTo)
		if err != nil {
			errs["assigned_to"] = "Invalid user ID"
		}
		f.AssignedTo = &id
	}
	f.Tag = r.Tag
	f.Search = r.Search

	return f, errs
}

// Create handles POST /api/v1/exports
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var req CreateExportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
			return
		}
	}

	filters, errs := req.toFilters()
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	job, err := h.exportService.CreateJob(r.Context(), tenantID, userID, middleware.GetUserEmail(r.Context()), filters)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create export"})
		return
	}

	task, err := tasks.NewExportLeadsTask(tasks.ExportLeadsPayload{JobID: job.ID, TenantID: tenantID})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue export"})
		return
	}
	if _, err := h.asynqClient.EnqueueContext(r.Context(), task); err != nil {
		h.logger.Error("enqueueing export", "job_id", job.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue export"})
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

// Get handles GET /api/v1/exports/:id for status polling.
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid export ID"})
		return
	}

	job, err := h.exportService.Job(r.Context(), tenantID, jobID)
	if err != nil {
		if err == exports.ErrJobNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Export not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get export"})
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// Download handles GET /api/v1/exports/:id/download
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid export ID"})
		return
	}

	job, err := h.exportService.Job(r.Context(), tenantID, jobID)
	if err != nil {
		if err == exports.ErrJobNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Export not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get export"})
		return
	}

	if job.Status != models.ExportStatusCompleted || job.FilePath == "" {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Export is not ready"})
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(job.FilePath)+`"`)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, job.FilePath)
}

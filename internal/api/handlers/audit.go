package handlers

import (
	"net/http"
	"strconv"

	"github.com/casafield/leadpipe/internal/api/dto"
	"github.com/casafield/leadpipe/internal/api/middleware"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/database/models"
)

type AuditHandler struct {
	auditService *audit.Service
}

func NewAuditHandler(auditService *audit.Service) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// List handles GET /api/v1/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	eventType := models.AuditEventType(r.URL.Query().Get("event_type"))
	severity := models.Severity(r.URL.Query().Get("severity"))

	logs, total, err := h.auditService.List(r.Context(), tenantID, eventType, severity, pagination.Offset(), pagination.PerPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list audit logs"})
		return
	}

	totalPages := int(total) / pagination.PerPage
	if int(total)%pagination.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       logs,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages,
	})
}

// Stats handles GET /api/v1/audit/stats
func (h *AuditHandler) Stats(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	stats, err := h.auditService.TenantStats(r.Context(), tenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to compute stats"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

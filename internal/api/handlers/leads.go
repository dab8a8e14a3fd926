package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/casafield/leadpipe/internal/api/dto"
	"github.com/casafield/leadpipe/internal/api/middleware"
	"github.com/casafield/leadpipe/internal/api/validation"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/internal/exports"
	"github.com/casafield/leadpipe/internal/leads"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type LeadHandler struct {
	leadService   *leads.Service
	importService *exports.Service
}

func NewLeadHandler(leadService *leads.Service, importService *exports.Service) *LeadHandler {
	return &LeadHandler{leadService: leadService, importService: importService}
}

// CreateLeadRequest represents the request to create a lead
type CreateLeadRequest struct {
	Name            string                  `json:"name"`
	Phone           string                  `json:"phone"`
	Email           string                  `json:"email,omitempty"`
	Address         *models.Address         `json:"address,omitempty"`
	PropertyDetails *models.PropertyDetails `json:"property_details,omitempty"`
	EstimatedValue  float64                 `json:"estimated_value,omitempty"`
	AskingPrice     float64                 `json:"asking_price,omitempty"`
	Priority        string                  `json:"priority,omitempty"`
	AssignedTo      *string                 `json:"assigned_to,omitempty"`
	Tags            []string                `json:"tags,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
	Source          string                  `json:"source,omitempty"`
	NextFollowUp    *time.Time              `json:"next_follow_up,omitempty"`
	CustomFields    map[string]interface{}  `json:"custom_fields,omitempty"`
}

// UpdateLeadRequest is a patch: absent fields are left untouched.
type UpdateLeadRequest struct {
	Name            *string                 `json:"name,omitempty"`
	Phone           *string                 `json:"phone,omitempty"`
	Email           *string                 `json:"email,omitempty"`
	Address         *models.Address         `json:"address,omitempty"`
	PropertyDetails *models.PropertyDetails `json:"property_details,omitempty"`
	EstimatedValue  *float64                `json:"estimated_value,omitempty"`
	AskingPrice     *float64                `json:"asking_price,omitempty"`
	Status          *string                 `json:"status,omitempty"`
	Priority        *string                 `json:"priority,omitempty"`
	Notes           *string                 `json:"notes,omitempty"`
	NextFollowUp    *time.Time              `json:"next_follow_up,omitempty"`
	CustomFields    map[string]interface{}  `json:"custom_fields,omitempty"`
}

func actorFrom(r *http.Request) leads.Actor {
	return leads.Actor{
		ID:    middleware.GetUserID(r.Context()),
		Email: middleware.GetUserEmail(r.Context()),
	}
}

func filtersFrom(r *http.Request) (leads.Filters, map[string]string) {
	var f leads.Filters
	errs := make(map[string]string)
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := models.LeadStatus(v)
		if !status.Valid() {
			errs["status"] = "Invalid status"
		}
		f.Status = &status
	}
	if v := q.Get("priority"); v != "" {
		priority := models.LeadPriority(v)
		if !priority.Valid() {
			errs["priority"] = "Invalid priority"
		}
		f.Priority = &priority
	}
	if v := q.Get("assigned_to"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			errs["assigned_to"] = "Invalid user ID"
		}
		f.AssignedTo = &id
	}
	f.Tag = q.Get("tag")
	f.Search = validation.SanitizeString(q.Get("search"))

	return f, errs
}

// writeLeadError maps domain errors onto HTTP statuses.
func writeLeadError(w http.ResponseWriter, err error, fallback string) {
	if ve, ok := leads.AsValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: ve.Fields})
		return
	}
	switch err {
	case leads.ErrNotFound:
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Lead not found"})
	case leads.ErrDuplicatePhone:
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Phone number already exists"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: fallback})
	}
}

// List handles GET /api/v1/leads
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	filters, errs := filtersFrom(r)
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	rows, total, err := h.leadService.List(r.Context(), tenantID, filters, pagination.Offset(), pagination.PerPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list leads"})
		return
	}

	totalPages := int(total) / pagination.PerPage
	if int(total)%pagination.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       rows,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages,
	})
}

// Create handles POST /api/v1/leads
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	input := leads.CreateInput{
		Name:            validation.SanitizeString(req.Name),
		Phone:           validation.NormalizePhone(req.Phone),
		Email:           req.Email,
		Address:         req.Address,
		PropertyDetails: req.PropertyDetails,
		EstimatedValue:  req.EstimatedValue,
		AskingPrice:     req.AskingPrice,
		Priority:        models.LeadPriority(req.Priority),
		Tags:            req.Tags,
		Notes:           req.Notes,
		Source:          req.Source,
		NextFollowUp:    req.NextFollowUp,
		CustomFields:    req.CustomFields,
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		id, err := uuid.Parse(*req.AssignedTo)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"assigned_to": "Invalid user ID"},
			})
			return
		}
		input.AssignedTo = &id
	}

	lead, err := h.leadService.Create(r.Context(), tenantID, actorFrom(r), input)
	if err != nil {
		writeLeadError(w, err, "Failed to create lead")
		return
	}

	writeJSON(w, http.StatusCreated, lead)
}

// Get handles GET /api/v1/leads/:id
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	lead, err := h.leadService.Get(r.Context(), tenantID, leadID)
	if err != nil {
		writeLeadError(w, err, "Failed to get lead")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// Update handles PUT /api/v1/leads/:id
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	var req UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	input := leads.UpdateInput{
		Name:            req.Name,
		Email:           req.Email,
		Address:         req.Address,
		PropertyDetails: req.PropertyDetails,
		EstimatedValue:  req.EstimatedValue,
		AskingPrice:     req.AskingPrice,
		Notes:           req.Notes,
		NextFollowUp:    req.NextFollowUp,
		CustomFields:    req.CustomFields,
	}
	if req.Phone != nil {
		normalized := validation.NormalizePhone(*req.Phone)
		input.Phone = &normalized
	}
	if req.Status != nil {
		status := models.LeadStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := models.LeadPriority(*req.Priority)
		input.Priority = &priority
	}

	lead, err := h.leadService.Update(r.Context(), tenantID, leadID, actorFrom(r), input)
	if err != nil {
		writeLeadError(w, err, "Failed to update lead")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/v1/leads/:id
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	if err := h.leadService.Delete(r.Context(), tenantID, leadID, actorFrom(r)); err != nil {
		writeLeadError(w, err, "Failed to delete lead")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Lead deleted"})
}

// SetStatus handles PUT /api/v1/leads/:id/status
func (h *LeadHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	lead, err := h.leadService.SetStatus(r.Context(), tenantID, leadID, actorFrom(r), models.LeadStatus(req.Status))
	if err != nil {
		writeLeadError(w, err, "Failed to update status")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// Assign handles PUT /api/v1/leads/:id/assign
func (h *LeadHandler) Assign(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"user_id": "Invalid user ID"},
		})
		return
	}

	lead, err := h.leadService.Assign(r.Context(), tenantID, leadID, actorFrom(r), userID)
	if err != nil {
		writeLeadError(w, err, "Failed to assign lead")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// AddTag handles POST /api/v1/leads/:id/tags
func (h *LeadHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	lead, err := h.leadService.AddTag(r.Context(), tenantID, leadID, validation.SanitizeString(req.Tag))
	if err != nil {
		writeLeadError(w, err, "Failed to add tag")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// RemoveTag handles DELETE /api/v1/leads/:id/tags/:tag
func (h *LeadHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	lead, err := h.leadService.RemoveTag(r.Context(), tenantID, leadID, chi.URLParam(r, "tag"))
	if err != nil {
		writeLeadError(w, err, "Failed to remove tag")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// RecordContact handles POST /api/v1/leads/:id/contact
func (h *LeadHandler) RecordContact(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid lead ID"})
		return
	}

	lead, err := h.leadService.RecordContact(r.Context(), tenantID, leadID)
	if err != nil {
		writeLeadError(w, err, "Failed to record contact")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// Pipeline handles GET /api/v1/leads/pipeline
func (h *LeadHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	filters, errs := filtersFrom(r)
	// The board always spans every column; a status filter is ignored rather
	// than rejected.
	delete(errs, "status")
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	pipeline, err := h.leadService.Pipeline(r.Context(), tenantID, filters)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to build pipeline"})
		return
	}

	writeJSON(w, http.StatusOK, pipeline)
}

// Analytics handles GET /api/v1/analytics/summary
func (h *LeadHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	summary, err := h.leadService.Analytics(r.Context(), tenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to build summary"})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Import handles POST /api/v1/leads/import with a multipart CSV file.
func (h *LeadHandler) Import(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid multipart form"})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Missing file field"})
		return
	}
	defer file.Close()

	result, err := h.importService.ImportCSV(r.Context(), tenantID, actorFrom(r), file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to parse CSV"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

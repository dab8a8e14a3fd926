package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/casafield/leadpipe/internal/api/dto"
	"github.com/casafield/leadpipe/internal/api/middleware"
	"github.com/casafield/leadpipe/internal/api/validation"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/auth"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type UserHandler struct {
	db          *gorm.DB
	authService *auth.Service
	recorder    *audit.Recorder
	asynqClient *asynq.Client
	logger      *slog.Logger
}

func NewUserHandler(db *gorm.DB, authService *auth.Service, recorder *audit.Recorder, asynqClient *asynq.Client, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		db:          db,
		authService: authService,
		recorder:    recorder,
		asynqClient: asynqClient,
		logger:      logger,
	}
}

// CreateUserRequest represents the request to add a user to the tenant
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

func (r CreateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Email is invalid"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Role != "" {
		switch models.Role(r.Role) {
		case models.RoleAdmin, models.RoleAcquisitionRep, models.RoleDispositionManager:
		default:
			errors["role"] = "Invalid role"
		}
	}

	return errors
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.Model(&models.User{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count users"})
		return
	}

	var users []models.User
	if err := query.
		Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&users).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list users"})
		return
	}

	response := make([]dto.UserDTO, len(users))
	for i := range users {
		response[i] = dto.UserToDTO(&users[i])
	}

	totalPages := int(total) / pagination.PerPage
	if int(total)%pagination.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages,
	})
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	user, err := h.authService.CreateUser(r.Context(), tenantID, auth.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     models.Role(req.Role),
	}, middleware.GetUserID(r.Context()))
	if err != nil {
		if err == auth.ErrUserExists {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create user"})
		return
	}

	writeJSON(w, http.StatusCreated, dto.UserToDTO(user))
}

// ChangeRole handles PUT /api/v1/users/:id/role
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	role := models.Role(req.Role)
	switch role {
	case models.RoleAdmin, models.RoleAcquisitionRep, models.RoleDispositionManager:
	default:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"role": "Invalid role"},
		})
		return
	}

	user, err := h.authService.ChangeRole(r.Context(), tenantID, userID, role, middleware.GetUserID(r.Context()))
	if err != nil {
		if err == auth.ErrUserNotFound {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to change role"})
		return
	}

	writeJSON(w, http.StatusOK, dto.UserToDTO(user))
}

// Delete handles DELETE /api/v1/users/:id. The account is deactivated, not
// removed, and the user's audit trail is scrubbed asynchronously.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	if userID == middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Cannot delete your own account"})
		return
	}

	result := h.db.Model(&models.User{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Update("is_active", false)
	if result.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete user"})
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	task, err := tasks.NewAnonymizeActorTask(tasks.AnonymizeActorPayload{
		TenantID: tenantID,
		ActorID:  userID,
	})
	if err == nil {
		if _, err := h.asynqClient.EnqueueContext(r.Context(), task, asynq.Queue("low")); err != nil {
			h.logger.Error("enqueueing anonymize task", "user_id", userID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}

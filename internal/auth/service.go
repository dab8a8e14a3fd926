package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/casafield/leadpipe/internal/access"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service struct {
	db       *gorm.DB
	jwt      *JWTService
	checker  *access.Checker
	recorder *audit.Recorder
	google   *GoogleVerifier // nil when Google sign-in is not configured
}

func NewService(db *gorm.DB, jwt *JWTService, checker *access.Checker, recorder *audit.Recorder, google *GoogleVerifier) *Service {
	return &Service{db: db, jwt: jwt, checker: checker, recorder: recorder, google: google}
}

type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	TenantName string // Optional: create new tenant
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	// Check if user exists
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	// Hash password
	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	tenantSlug := generateSlug(input.TenantName)
	if input.TenantName == "" {
		input.TenantName = input.Name + "'s Team"
		tenantSlug = generateSlug(input.Name)
	}

	tenant := models.Tenant{
		Name: input.TenantName,
		Slug: tenantSlug,
	}

	// Transaction: create tenant and its first admin
	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		user = models.User{
			Email:        input.Email,
			PasswordHash: hash,
			Name:         input.Name,
			TenantID:     tenant.ID,
			Role:         models.RoleAdmin,
			Permissions:  s.checker.PermissionsFor(models.RoleAdmin),
			IsActive:     true,
		}

		return tx.Create(&user).Error
	})

	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, tenant.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	user.Tenant = &tenant

	s.recordLogin(ctx, &user, "register")

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Tenant").
		Where("email = ?", input.Email).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if user.PasswordHash == "" || !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.bumpLogin(ctx, &user); err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.TenantID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	s.recordLogin(ctx, &user, "password")

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

// LoginWithGoogle exchanges the OAuth authorization code, then creates or
// updates the user keyed by their Google id. The permissions snapshot is
// NOT refreshed here; it only changes when the role changes explicitly.
func (s *Service) LoginWithGoogle(ctx context.Context, code string) (*AuthResponse, error) {
	if s.google == nil {
		return nil, errors.New("google sign-in is not configured")
	}

	profile, err := s.google.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).
		Preload("Tenant").
		Where("google_id = ?", profile.ID).
		First(&user).Error

	switch {
	case err == nil:
		// Known Google account: refresh profile basics only.
		user.Name = profile.Name
		user.Email = profile.Email
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Link to an existing password account by email, or provision a
		// fresh tenant for a brand-new sign-up.
		if linkErr := s.db.WithContext(ctx).
			Preload("Tenant").
			Where("email = ?", profile.Email).
			First(&user).Error; linkErr == nil {
			user.GoogleID = profile.ID
		} else if errors.Is(linkErr, gorm.ErrRecordNotFound) {
			created, createErr := s.provisionGoogleUser(ctx, profile)
			if createErr != nil {
				return nil, createErr
			}
			user = *created
		} else {
			return nil, linkErr
		}
	default:
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if err := s.bumpLogin(ctx, &user); err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.TenantID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	s.recordLogin(ctx, &user, "google")

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) provisionGoogleUser(ctx context.Context, profile *GoogleProfile) (*models.User, error) {
	tenant := models.Tenant{
		Name: profile.Name + "'s Team",
		Slug: generateSlug(profile.Name),
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		user = models.User{
			Email:       profile.Email,
			Name:        profile.Name,
			GoogleID:    profile.ID,
			TenantID:    tenant.ID,
			Role:        models.RoleAdmin,
			Permissions: s.checker.PermissionsFor(models.RoleAdmin),
			IsActive:    true,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}

	user.Tenant = &tenant
	return &user, nil
}

// bumpLogin persists login bookkeeping plus any profile fields updated
// during sign-in.
func (s *Service) bumpLogin(ctx context.Context, user *models.User) error {
	now := time.Now().Unix()
	user.LoginCount++
	user.LastLoginAt = &now
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Tenant").
		First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUserInput carries the fields an admin sets when adding a teammate.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     models.Role // defaults to acquisition_rep
}

// CreateUser adds a user to an existing tenant.
func (s *Service) CreateUser(ctx context.Context, tenantID uuid.UUID, input CreateUserInput, actorID uuid.UUID) (*models.User, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = models.RoleAcquisitionRep
	}

	user := models.User{
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		TenantID:     tenantID,
		Role:         role,
		Permissions:  s.checker.PermissionsFor(role),
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.Event{
			TenantID: tenantID,
			Type:     models.EventUserCreated,
			Severity: models.SeverityLow,
			ActorID:  &actorID,
			Resource: "user",
			Action:   "create",
			Metadata: map[string]interface{}{
				"user_id": user.ID.String(),
				"role":    string(role),
			},
		})
	}

	return &user, nil
}

// ChangeRole updates a tenant user's role and refreshes the permission
// snapshot cached on the record. This is the only place the snapshot is
// recomputed.
func (s *Service) ChangeRole(ctx context.Context, tenantID, userID uuid.UUID, role models.Role, actorID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	previous := user.Role
	user.Role = role
	user.Permissions = s.checker.PermissionsFor(role)
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, audit.Event{
			TenantID: tenantID,
			Type:     models.EventRoleChanged,
			Severity: models.SeverityHigh,
			ActorID:  &actorID,
			Resource: "user",
			Action:   "role_change",
			Metadata: map[string]interface{}{
				"user_id": user.ID.String(),
				"from":    string(previous),
				"to":      string(role),
			},
		})
	}

	return &user, nil
}

func (s *Service) recordLogin(ctx context.Context, user *models.User, method string) {
	if s.recorder == nil {
		return
	}
	id := user.ID
	s.recorder.Record(ctx, audit.Event{
		TenantID:   user.TenantID,
		Type:       models.EventUserLogin,
		Severity:   models.SeverityInfo,
		ActorID:    &id,
		ActorEmail: user.Email,
		Resource:   "user",
		Action:     "login",
		Metadata:   map[string]interface{}{"method": method},
	})
}

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	// Add timestamp to ensure uniqueness
	return slug + "-" + time.Now().Format("0601021504")
}

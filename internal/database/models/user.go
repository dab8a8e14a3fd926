package models

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin              Role = "admin"
	RoleAcquisitionRep     Role = "acquisition_rep"
	RoleDispositionManager Role = "disposition_manager"
)

// UserPreferences is stored as a JSON column
type UserPreferences struct {
	Theme         string `json:"theme,omitempty"`
	Notifications bool   `json:"notifications"`
	DefaultView   string `json:"default_view,omitempty"`
}

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"` // empty for OAuth-only accounts
	Name         string `json:"name"`

	// Google OAuth identity; empty for password accounts
	GoogleID string `gorm:"index" json:"-"`

	TenantID uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Role     Role      `gorm:"default:'acquisition_rep'" json:"role"`

	// Permission strings snapshotted from the role table at creation
	// and refreshed only when the role changes explicitly.
	Permissions []string `gorm:"serializer:json" json:"permissions"`

	IsActive    bool            `gorm:"default:true" json:"is_active"`
	Preferences UserPreferences `gorm:"serializer:json" json:"preferences"`

	LoginCount  int    `gorm:"default:0" json:"login_count"`
	LastLoginAt *int64 `json:"last_login_at,omitempty"`

	// Relationships
	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

func (User) TableName() string {
	return "users"
}

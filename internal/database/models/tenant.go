package models

type Tenant struct {
	Base
	Name     string `gorm:"not null" json:"name"`
	Slug     string `gorm:"uniqueIndex;not null" json:"slug"`
	Plan     string `gorm:"default:'free'" json:"plan"` // free, pro, enterprise
	MaxUsers int    `gorm:"default:5" json:"max_users"`
	MaxLeads int    `gorm:"default:1000" json:"max_leads"`

	// Relationships
	Users []User `gorm:"foreignKey:TenantID" json:"-"`
	Leads []Lead `gorm:"foreignKey:TenantID" json:"-"`
}

func (Tenant) TableName() string {
	return "tenants"
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusContacted     LeadStatus = "contacted"
	LeadStatusUnderContract LeadStatus = "under_contract"
	LeadStatusClosed        LeadStatus = "closed"
	LeadStatusLost          LeadStatus = "lost"
)

// PipelineStatuses lists the five board columns in display order.
var PipelineStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusUnderContract,
	LeadStatusClosed,
	LeadStatusLost,
}

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusUnderContract,
		LeadStatusClosed, LeadStatusLost:
		return true
	}
	return false
}

type LeadPriority string

const (
	LeadPriorityLow    LeadPriority = "low"
	LeadPriorityMedium LeadPriority = "medium"
	LeadPriorityHigh   LeadPriority = "high"
	LeadPriorityUrgent LeadPriority = "urgent"
)

func (p LeadPriority) Valid() bool {
	switch p {
	case LeadPriorityLow, LeadPriorityMedium, LeadPriorityHigh, LeadPriorityUrgent:
		return true
	}
	return false
}

// Address of the subject property, stored as a JSON column
type Address struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	County      string `json:"county,omitempty"`
	FullAddress string `json:"full_address,omitempty"`
}

// PropertyDetails describe the subject property, stored as a JSON column
type PropertyDetails struct {
	Type       string  `json:"type,omitempty"` // single_family, condo, multi_family, land
	Bedrooms   int     `json:"bedrooms,omitempty"`
	Bathrooms  float64 `json:"bathrooms,omitempty"`
	SquareFeet int     `json:"square_feet,omitempty"`
	LotSize    float64 `json:"lot_size,omitempty"`
	YearBuilt  int     `json:"year_built,omitempty"`
}

type Lead struct {
	Base
	// TenantID is immutable after creation; every query is scoped by it.
	TenantID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_leads_tenant_phone" json:"tenant_id"`

	// Contact
	Name  string `gorm:"size:100;not null" json:"name"`
	Phone string `gorm:"not null;uniqueIndex:idx_leads_tenant_phone" json:"phone"`
	Email string `json:"email,omitempty"`

	// Property
	Address         *Address         `gorm:"serializer:json" json:"address,omitempty"`
	PropertyDetails *PropertyDetails `gorm:"serializer:json" json:"property_details,omitempty"`

	// Commercial
	EstimatedValue float64 `json:"estimated_value,omitempty"`
	AskingPrice    float64 `json:"asking_price,omitempty"`

	// Workflow
	Status     LeadStatus   `gorm:"not null;index;default:'new'" json:"status"`
	Priority   LeadPriority `gorm:"not null;default:'medium'" json:"priority"`
	AssignedTo *uuid.UUID   `gorm:"type:uuid;index" json:"assigned_to,omitempty"`
	Tags       []string     `gorm:"serializer:json" json:"tags"`
	Notes      string       `gorm:"type:text" json:"notes,omitempty"`
	Source     string       `json:"source,omitempty"` // manual, import, webform

	// Engagement
	CommunicationCount int        `gorm:"default:0" json:"communication_count"`
	LastContacted      *time.Time `json:"last_contacted,omitempty"`
	NextFollowUp       *time.Time `json:"next_follow_up,omitempty"`

	// Extensibility
	CustomFields map[string]interface{} `gorm:"serializer:json" json:"custom_fields,omitempty"`

	// Relationships
	Tenant   *Tenant `gorm:"foreignKey:TenantID" json:"-"`
	Assignee *User   `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

func (Lead) TableName() string {
	return "leads"
}

// HasTag reports whether the lead already carries the tag.
func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

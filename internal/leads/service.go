package leads

import (
	"context"
	"log/slog"
	"time"

	"github.com/casafield/leadpipe/internal/api/validation"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/google/uuid"
)

// AuditRecorder is the one-way audit channel. A nil recorder disables
// auditing (used in tests); failures never surface to callers.
type AuditRecorder interface {
	Record(ctx context.Context, ev audit.Event)
}

// Actor identifies who performs an operation, for the audit trail.
type Actor struct {
	ID    uuid.UUID
	Email string
}

type Service struct {
	repo   *Repository
	audit  AuditRecorder
	logger *slog.Logger
}

func NewService(repo *Repository, recorder AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: recorder, logger: logger}
}

// CreateInput carries the writable fields of a new lead.
type CreateInput struct {
	Name            string
	Phone           string
	Email           string
	Address         *models.Address
	PropertyDetails *models.PropertyDetails
	EstimatedValue  float64
	AskingPrice     float64
	Priority        models.LeadPriority // defaults to medium
	AssignedTo      *uuid.UUID
	Tags            []string
	Notes           string
	Source          string
	NextFollowUp    *time.Time
	CustomFields    map[string]interface{}
}

func (in CreateInput) validate() map[string]string {
	errs := make(map[string]string)
	if in.Name == "" {
		errs["name"] = "Name is required"
	} else if len(in.Name) > 100 {
		errs["name"] = "Name must be at most 100 characters"
	}
	if in.Phone == "" {
		errs["phone"] = "Phone is required"
	} else if !validation.IsValidPhone(in.Phone) {
		errs["phone"] = "Phone must be in international format, e.g. +15551234567"
	}
	if in.Email != "" && !validation.IsValidEmail(in.Email) {
		errs["email"] = "Invalid email format"
	}
	if in.Priority != "" && !in.Priority.Valid() {
		errs["priority"] = "Invalid priority"
	}
	return errs
}

// Create validates the input, rejects duplicate phones within the tenant
// and stores the lead with its workflow defaults.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, actor Actor, in CreateInput) (*models.Lead, error) {
	if errs := in.validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	// Friendly pre-check; the unique index still backstops concurrent creates.
	inUse, err := s.repo.PhoneInUse(ctx, tenantID, in.Phone, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, ErrDuplicatePhone
	}

	priority := in.Priority
	if priority == "" {
		priority = models.LeadPriorityMedium
	}
	source := in.Source
	if source == "" {
		source = "manual"
	}

	lead := &models.Lead{
		TenantID:           tenantID,
		Name:               in.Name,
		Phone:              in.Phone,
		Email:              in.Email,
		Address:            in.Address,
		PropertyDetails:    in.PropertyDetails,
		EstimatedValue:     in.EstimatedValue,
		AskingPrice:        in.AskingPrice,
		Status:             models.LeadStatusNew,
		Priority:           priority,
		AssignedTo:         in.AssignedTo,
		Tags:               dedupeTags(in.Tags),
		Notes:              in.Notes,
		Source:             source,
		CommunicationCount: 0,
		NextFollowUp:       in.NextFollowUp,
		CustomFields:       in.CustomFields,
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, err
	}

	s.record(ctx, tenantID, actor, models.EventLeadCreated, models.SeverityInfo, "create", map[string]interface{}{
		"lead_id": lead.ID.String(),
		"phone":   lead.Phone,
	})

	return lead, nil
}

// Get returns the lead only when it belongs to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error) {
	return s.repo.ByID(ctx, tenantID, id)
}

// List returns a page of the tenant's leads plus the total match count.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f Filters, offset, limit int) ([]models.Lead, int64, error) {
	return s.repo.List(ctx, tenantID, f, offset, limit)
}

// All returns every matching lead without pagination. Exports read the
// whole tenant set in one pass.
func (s *Service) All(ctx context.Context, tenantID uuid.UUID, f Filters) ([]models.Lead, error) {
	return s.repo.All(ctx, tenantID, f)
}

// UpdateInput is a patch: nil fields are left untouched.
type UpdateInput struct {
	Name            *string
	Phone           *string
	Email           *string
	Address         *models.Address
	PropertyDetails *models.PropertyDetails
	EstimatedValue  *float64
	AskingPrice     *float64
	Status          *models.LeadStatus
	Priority        *models.LeadPriority
	Notes           *string
	NextFollowUp    *time.Time
	CustomFields    map[string]interface{}
}

func (in UpdateInput) validate() map[string]string {
	errs := make(map[string]string)
	if in.Name != nil {
		if *in.Name == "" {
			errs["name"] = "Name cannot be empty"
		} else if len(*in.Name) > 100 {
			errs["name"] = "Name must be at most 100 characters"
		}
	}
	if in.Phone != nil && !validation.IsValidPhone(*in.Phone) {
		errs["phone"] = "Phone must be in international format, e.g. +15551234567"
	}
	if in.Email != nil && *in.Email != "" && !validation.IsValidEmail(*in.Email) {
		errs["email"] = "Invalid email format"
	}
	if in.Status != nil && !in.Status.Valid() {
		errs["status"] = "Invalid status"
	}
	if in.Priority != nil && !in.Priority.Valid() {
		errs["priority"] = "Invalid priority"
	}
	return errs
}

// Update merges the patch into the tenant-scoped lead. Phone changes
// re-check uniqueness, excluding the lead's own record.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, actor Actor, in UpdateInput) (*models.Lead, error) {
	if errs := in.validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	lead, err := s.repo.ByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if in.Phone != nil && *in.Phone != lead.Phone {
		inUse, err := s.repo.PhoneInUse(ctx, tenantID, *in.Phone, lead.ID)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, ErrDuplicatePhone
		}
		lead.Phone = *in.Phone
	}

	if in.Name != nil {
		lead.Name = *in.Name
	}
	if in.Email != nil {
		lead.Email = *in.Email
	}
	if in.Address != nil {
		lead.Address = in.Address
	}
	if in.PropertyDetails != nil {
		lead.PropertyDetails = in.PropertyDetails
	}
	if in.EstimatedValue != nil {
		lead.EstimatedValue = *in.EstimatedValue
	}
	if in.AskingPrice != nil {
		lead.AskingPrice = *in.AskingPrice
	}
	if in.Status != nil {
		lead.Status = *in.Status
	}
	if in.Priority != nil {
		lead.Priority = *in.Priority
	}
	if in.Notes != nil {
		lead.Notes = *in.Notes
	}
	if in.NextFollowUp != nil {
		lead.NextFollowUp = in.NextFollowUp
	}
	for k, v := range in.CustomFields {
		if lead.CustomFields == nil {
			lead.CustomFields = make(map[string]interface{})
		}
		lead.CustomFields[k] = v
	}

	if err := s.repo.Save(ctx, lead); err != nil {
		return nil, err
	}

	s.record(ctx, tenantID, actor, models.EventLeadUpdated, models.SeverityInfo, "update", map[string]interface{}{
		"lead_id": lead.ID.String(),
	})

	return lead, nil
}

// Delete hard-removes the lead after a tenant-scoped existence check.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID, actor Actor) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.record(ctx, tenantID, actor, models.EventLeadDeleted, models.SeverityMedium, "delete", map[string]interface{}{
		"lead_id": id.String(),
	})
	return nil
}

// SetStatus moves the lead to another pipeline column.
func (s *Service) SetStatus(ctx context.Context, tenantID, id uuid.UUID, actor Actor, status models.LeadStatus) (*models.Lead, error) {
	if !status.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "Invalid status"}}
	}

	lead, err := s.repo.ByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	previous := lead.Status
	lead.Status = status
	if err := s.repo.Save(ctx, lead); err != nil {
		return nil, err
	}

	s.record(ctx, tenantID, actor, models.EventLeadUpdated, models.SeverityInfo, "status_change", map[string]interface{}{
		"lead_id": lead.ID.String(),
		"from":    string(previous),
		"to":      string(status),
	})

	return lead, nil
}

// Assign hands the lead to a user.
func (s *Service) Assign(ctx context.Context, tenantID, id uuid.UUID, actor Actor, userID uuid.UUID) (*models.Lead, error) {
	lead, err := s.repo.ByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	lead.AssignedTo = &userID
	if err := s.repo.Save(ctx, lead); err != nil {
		return nil, err
	}

	s.record(ctx, tenantID, actor, models.EventLeadAssigned, models.SeverityInfo, "assign", map[string]interface{}{
		"lead_id":     lead.ID.String(),
		"assigned_to": userID.String(),
	})

	return lead, nil
}

// AddTag is idempotent: adding a tag the lead already carries is a no-op.
func (s *Service) AddTag(ctx context.Context, tenantID, id uuid.UUID, tag string) (*models.Lead, error) {
	if tag == "" {
		return nil, &ValidationError{Fields: map[string]string{"tag": "Tag is required"}}
	}

	lead, err := s.repo.ByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if lead.HasTag(tag) {
		return lead, nil
	}

	lead.Tags = append(lead.Tags, tag)
	if err := s.repo.Save(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// RemoveTag is idempotent: removing an absent tag leaves the set unchanged.
func (s *Service) RemoveTag(ctx context.Context, tenantID, id uuid.UUID, tag string) (*models.Lead, error) {
	lead, err := s.repo.ByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if !lead.HasTag(tag) {
		return lead, nil
	}

	tags := make([]string, 0, len(lead.Tags)-1)
	for _, t := range lead.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	lead.Tags = tags

	if err := s.repo.Save(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// RecordContact bumps the communication counter and stamps the contact time.
func (s *Service) RecordContact(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error) {
	lead, err := s.repo.ByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	lead.CommunicationCount++
	lead.LastContacted = &now

	if err := s.repo.Save(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *Service) record(ctx context.Context, tenantID uuid.UUID, actor Actor, eventType models.AuditEventType, severity models.Severity, action string, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var actorID *uuid.UUID
	if actor.ID != uuid.Nil {
		id := actor.ID
		actorID = &id
	}
	s.audit.Record(ctx, audit.Event{
		TenantID:   tenantID,
		Type:       eventType,
		Severity:   severity,
		ActorID:    actorID,
		ActorEmail: actor.Email,
		Resource:   "lead",
		Action:     action,
		Metadata:   metadata,
	})
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

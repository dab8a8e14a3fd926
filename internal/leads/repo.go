package leads

import (
	"context"
	"errors"

	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Filters narrow lead queries. The zero value matches everything.
type Filters struct {
	Status     *models.LeadStatus
	Priority   *models.LeadPriority
	AssignedTo *uuid.UUID
	Tag        string
	Search     string // matches name or phone
}

// Repository is the only path to the leads table. Every method requires a
// tenant id and injects it into the query, so no call site can forget the
// tenant filter.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Lead{}).Where("tenant_id = ?", tenantID)
}

func applyFilters(query *gorm.DB, f Filters) *gorm.DB {
	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}
	if f.Priority != nil {
		query = query.Where("priority = ?", *f.Priority)
	}
	if f.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *f.AssignedTo)
	}
	if f.Tag != "" {
		// Tags are stored as a JSON array; match the quoted element.
		query = query.Where("tags LIKE ?", `%"`+f.Tag+`"%`)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		query = query.Where("name LIKE ? OR phone LIKE ?", pattern, pattern)
	}
	return query
}

func (r *Repository) Create(ctx context.Context, lead *models.Lead) error {
	err := r.db.WithContext(ctx).Create(lead).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// The (tenant_id, phone) unique index closes the window between the
		// duplicate pre-check and the insert.
		return ErrDuplicatePhone
	}
	return err
}

func (r *Repository) ByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// List returns a page of leads plus the total match count.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, f Filters, offset, limit int) ([]models.Lead, int64, error) {
	query := applyFilters(r.scoped(ctx, tenantID), f)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []models.Lead
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// All returns every matching lead for the tenant, in insertion order.
// Used by the pipeline board, which is sized in the hundreds.
func (r *Repository) All(ctx context.Context, tenantID uuid.UUID, f Filters) ([]models.Lead, error) {
	var results []models.Lead
	err := applyFilters(r.scoped(ctx, tenantID), f).
		Order("created_at ASC").
		Find(&results).Error
	return results, err
}

// PhoneInUse reports whether another lead in the tenant already has the
// phone number. exclude skips the lead's own record on updates.
func (r *Repository) PhoneInUse(ctx context.Context, tenantID uuid.UUID, phone string, exclude uuid.UUID) (bool, error) {
	query := r.scoped(ctx, tenantID).Where("phone = ?", phone)
	if exclude != uuid.Nil {
		query = query.Where("id != ?", exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) Save(ctx context.Context, lead *models.Lead) error {
	err := r.db.WithContext(ctx).Save(lead).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePhone
	}
	return err
}

// Delete hard-removes the lead. Returns ErrNotFound when the tenant-scoped
// lookup matches nothing.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.Lead{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

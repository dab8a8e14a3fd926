package leads

import (
	"context"

	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/google/uuid"
)

// Bucket is one board column.
type Bucket struct {
	Status models.LeadStatus `json:"status"`
	Count  int               `json:"count"`
	Leads  []models.Lead     `json:"leads"`
}

// Pipeline is the full board: all five columns in fixed order. Counts
// partition Total with no overlap.
type Pipeline struct {
	Buckets []Bucket `json:"buckets"`
	Total   int      `json:"total"`
}

// Pipeline buckets the tenant's leads into the five fixed status columns.
// A status filter is never applied here: the board always spans all five
// columns, even when the caller passes one. Priority and assignee filters
// do apply. The whole tenant set is read and bucketed in memory; boards
// are sized in the hundreds, not thousands.
func (s *Service) Pipeline(ctx context.Context, tenantID uuid.UUID, f Filters) (*Pipeline, error) {
	f.Status = nil

	all, err := s.repo.All(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[models.LeadStatus][]models.Lead, len(models.PipelineStatuses))
	for _, lead := range all {
		byStatus[lead.Status] = append(byStatus[lead.Status], lead)
	}

	p := &Pipeline{
		Buckets: make([]Bucket, 0, len(models.PipelineStatuses)),
		Total:   len(all),
	}
	for _, status := range models.PipelineStatuses {
		group := byStatus[status]
		if group == nil {
			group = []models.Lead{}
		}
		p.Buckets = append(p.Buckets, Bucket{
			Status: status,
			Count:  len(group),
			Leads:  group,
		})
	}

	return p, nil
}

// AnalyticsSummary condenses a tenant's funnel for dashboard views.
type AnalyticsSummary struct {
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"by_status"`
	ByPriority     map[string]int64 `json:"by_priority"`
	ConversionRate float64          `json:"conversion_rate"` // closed / total
	AvgEstimated   float64          `json:"avg_estimated_value"`
}

func (s *Service) Analytics(ctx context.Context, tenantID uuid.UUID) (*AnalyticsSummary, error) {
	all, err := s.repo.All(ctx, tenantID, Filters{})
	if err != nil {
		return nil, err
	}

	summary := &AnalyticsSummary{
		Total:      int64(len(all)),
		ByStatus:   make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	var closed int64
	var valueSum float64
	for _, lead := range all {
		summary.ByStatus[string(lead.Status)]++
		summary.ByPriority[string(lead.Priority)]++
		if lead.Status == models.LeadStatusClosed {
			closed++
		}
		valueSum += lead.EstimatedValue
	}

	if summary.Total > 0 {
		summary.ConversionRate = float64(closed) / float64(summary.Total)
		summary.AvgEstimated = valueSum / float64(summary.Total)
	}

	return summary, nil
}

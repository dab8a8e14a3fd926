package exports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/database/models"
	"github.com/casafield/leadpipe/internal/leads"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("export job not found")

// Service runs lead exports and CSV imports. Export jobs are executed by
// the worker; the API only creates the job row and polls it.
type Service struct {
	db       *gorm.DB
	leadSvc  *leads.Service
	recorder *audit.Recorder
	dir      string
	logger   *slog.Logger
}

func NewService(db *gorm.DB, leadSvc *leads.Service, recorder *audit.Recorder, dir string, logger *slog.Logger) *Service {
	return &Service{db: db, leadSvc: leadSvc, recorder: recorder, dir: dir, logger: logger}
}

// CreateJob stores a pending export job for the tenant. Bulk extraction of
// contact data is always a sensitive, high-risk audit event.
func (s *Service) CreateJob(ctx context.Context, tenantID, requestedBy uuid.UUID, requestedByEmail string, filters leads.Filters) (*models.ExportJob, error) {
	encoded, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("encoding filters: %w", err)
	}

	job := &models.ExportJob{
		TenantID:    tenantID,
		RequestedBy: requestedBy,
		Format:      "xlsx",
		Status:      models.ExportStatusPending,
		Filters:     string(encoded),
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Event{
		TenantID:    tenantID,
		Type:        models.EventLeadExported,
		Severity:    models.SeverityHigh,
		ActorID:     &requestedBy,
		ActorEmail:  requestedByEmail,
		Resource:    "export",
		Action:      "create",
		Metadata:    map[string]interface{}{"job_id": job.ID.String()},
		IsSensitive: true,
	})

	return job, nil
}

// Job returns a tenant's export job for status polling.
func (s *Service) Job(ctx context.Context, tenantID, id uuid.UUID) (*models.ExportJob, error) {
	var job models.ExportJob
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Run executes a pending job: reads the tenant's leads and writes the
// workbook. Called from the worker.
func (s *Service) Run(ctx context.Context, jobID uuid.UUID) error {
	var job models.ExportJob
	if err := s.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		return fmt.Errorf("loading export job: %w", err)
	}

	if err := s.setStatus(ctx, &job, models.ExportStatusRunning, ""); err != nil {
		return err
	}

	var filters leads.Filters
	if job.Filters != "" {
		if err := json.Unmarshal([]byte(job.Filters), &filters); err != nil {
			_ = s.setStatus(ctx, &job, models.ExportStatusFailed, "invalid filters")
			return fmt.Errorf("decoding filters: %w", err)
		}
	}

	rows, err := s.leadSvc.All(ctx, job.TenantID, filters)
	if err != nil {
		_ = s.setStatus(ctx, &job, models.ExportStatusFailed, err.Error())
		return err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("leads-%s.xlsx", job.ID))
	if err := s.writeWorkbook(path, rows); err != nil {
		_ = s.setStatus(ctx, &job, models.ExportStatusFailed, err.Error())
		return err
	}

	now := time.Now().Unix()
	job.FilePath = path
	job.RowCount = len(rows)
	job.CompletedAt = &now
	if err := s.setStatus(ctx, &job, models.ExportStatusCompleted, ""); err != nil {
		return err
	}

	s.logger.Info("export completed", "job_id", job.ID, "rows", len(rows), "path", path)
	return nil
}

func (s *Service) setStatus(ctx context.Context, job *models.ExportJob, status models.ExportStatus, errMsg string) error {
	job.Status = status
	job.Error = errMsg
	return s.db.WithContext(ctx).Save(job).Error
}

var exportHeader = []string{
	"Name", "Phone", "Email", "Status", "Priority", "City", "State",
	"Estimated Value", "Asking Price", "Tags", "Communications", "Created",
}

func (s *Service) writeWorkbook(path string, rows []models.Lead) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leads"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return err
	}

	for i, lead := range rows {
		city, state := "", ""
		if lead.Address != nil {
			city, state = lead.Address.City, lead.Address.State
		}
		row := []interface{}{
			lead.Name,
			lead.Phone,
			lead.Email,
			string(lead.Status),
			string(lead.Priority),
			city,
			state,
			lead.EstimatedValue,
			lead.AskingPrice,
			joinTags(lead.Tags),
			lead.CommunicationCount,
			lead.CreatedAt.Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

// RowError reports one rejected import row.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`
}

// csv column order: name, phone, email, city, state, estimated_value
const (
	colName = iota
	colPhone
	colEmail
	colCity
	colState
	colEstimatedValue
	importCols
)

// ImportCSV reads leads row by row. Invalid rows are collected in the
// result, valid rows are created; one bad row never aborts the import.
func (s *Service) ImportCSV(ctx context.Context, tenantID uuid.UUID, actor leads.Actor, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &ImportResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	_ = header // header row is positional, not matched by name

	result := &ImportResult{}
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "malformed csv row"})
			continue
		}
		if len(record) < importCols {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "expected 6 columns"})
			continue
		}

		estimated := 0.0
		if record[colEstimatedValue] != "" {
			estimated, err = strconv.ParseFloat(record[colEstimatedValue], 64)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "invalid estimated_value"})
				continue
			}
		}

		input := leads.CreateInput{
			Name:           record[colName],
			Phone:          record[colPhone],
			Email:          record[colEmail],
			EstimatedValue: estimated,
			Source:         "import",
		}
		if record[colCity] != "" || record[colState] != "" {
			input.Address = &models.Address{City: record[colCity], State: record[colState]}
		}

		if _, err := s.leadSvc.Create(ctx, tenantID, actor, input); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		result.Imported++
	}

	var actorID *uuid.UUID
	if actor.ID != uuid.Nil {
		id := actor.ID
		actorID = &id
	}
	s.recorder.Record(ctx, audit.Event{
		TenantID:   tenantID,
		Type:       models.EventLeadImported,
		Severity:   models.SeverityLow,
		ActorID:    actorID,
		ActorEmail: actor.Email,
		Resource:   "lead",
		Action:     "import",
		Metadata: map[string]interface{}{
			"imported": result.Imported,
			"failed":   result.Failed,
		},
	})

	return result, nil
}

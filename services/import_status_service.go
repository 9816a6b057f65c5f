package services

import (
	"context"
	"time"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"

	"gorm.io/gorm"
)

// ImportJobStatus is the poll-friendly projection of one job. It is built
// fresh per request from persisted state and never mutates anything.
type ImportJobStatus struct {
	JobID           uint                    `json:"job_id"`
	Name            string                  `json:"name"`
	Status          string                  `json:"status"`
	Mode            string                  `json:"mode"`
	TotalRows       int64                   `json:"total_rows"`
	TotalIsEstimate bool                    `json:"total_is_estimate"`
	ProcessedRows   int64                   `json:"processed_rows"`
	SuccessfulRows  int64                   `json:"successful_rows"`
	FailedRows      int64                   `json:"failed_rows"`
	ConflictCount   int64                   `json:"conflict_count"`
	ProgressPercent float64                 `json:"progress_percent"`
	DurationSeconds float64                 `json:"duration_seconds"`
	ErrorCount      int                     `json:"error_count"`
	RowErrors       models.ImportRowErrors  `json:"row_errors"`
	ErrorMessage    *string                 `json:"error_message,omitempty"`
	StartedAt       *time.Time              `json:"started_at,omitempty"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	UnresolvedCount int                     `json:"unresolved_count"`
	ResolvedCount   int                     `json:"resolved_count"`
	Unresolved      []models.ImportConflict `json:"unresolved_conflicts"`
	Resolved        []models.ImportConflict `json:"resolved_conflicts"`
}

// ImportStatusService is the read-only projection operators poll while a job
// runs and afterwards while they work through conflicts.
type ImportStatusService struct {
	jobs ImportJobRepository
}

func NewImportStatusService(db *gorm.DB) *ImportStatusService {
	if db == nil {
		db = config.DB
	}
	return &ImportStatusService{jobs: NewGormImportJobRepository(db)}
}

// NewImportStatusServiceWith wires an explicit repository for tests.
func NewImportStatusServiceWith(jobs ImportJobRepository) *ImportStatusService {
	return &ImportStatusService{jobs: jobs}
}

// GetStatus builds the projection for one job.
func (s *ImportStatusService) GetStatus(ctx context.Context, opCtx OperationContext, jobID uint) (*ImportJobStatus, error) {
	job, err := s.jobs.GetForTenant(ctx, opCtx.TenantID, jobID)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.jobs.ListConflicts(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	status := &ImportJobStatus{
		JobID:           job.ID,
		Name:            job.Name,
		Status:          job.Status,
		Mode:            job.Mode,
		TotalRows:       job.TotalRows,
		TotalIsEstimate: job.TotalIsEstimate,
		ProcessedRows:   job.ProcessedRows,
		SuccessfulRows:  job.SuccessfulRows,
		FailedRows:      job.FailedRows,
		ConflictCount:   int64(len(conflicts)),
		ErrorCount:      len(job.RowErrors),
		RowErrors:       job.RowErrors,
		ErrorMessage:    job.ErrorMessage,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}

	if job.TotalRows > 0 {
		status.ProgressPercent = float64(job.ProcessedRows) / float64(job.TotalRows) * 100
		if status.ProgressPercent > 100 {
			status.ProgressPercent = 100
		}
	}

	// Duration is final once completed, elapsed-so-far while processing.
	if job.StartedAt != nil {
		end := time.Now()
		if job.CompletedAt != nil {
			end = *job.CompletedAt
		}
		status.DurationSeconds = end.Sub(*job.StartedAt).Seconds()
	}

	status.Unresolved = make([]models.ImportConflict, 0)
	status.Resolved = make([]models.ImportConflict, 0)
	for _, c := range conflicts {
		if c.Resolved {
			status.Resolved = append(status.Resolved, c)
		} else {
			status.Unresolved = append(status.Unresolved, c)
		}
	}
	status.ResolvedCount = len(status.Resolved)
	status.UnresolvedCount = len(status.Unresolved)

	return status, nil
}

package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"
	"github.com/danfelbm/astra-sub000/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrJobNotPending    = errors.New("import job is not pending")
	ErrContextExclusive = errors.New("assembly and election context are mutually exclusive")
	ErrInvalidMode      = errors.New("invalid import mode")
)

// TemporaryImportPassword is the fixed credential assigned to every person the
// importer creates. Operators force a reset before first login.
const TemporaryImportPassword = "changeme123"

// maxStoredRowErrors caps the error list persisted on the job; the counters
// stay exact beyond the cap.
const maxStoredRowErrors = 100

// defaultJobTimeout bounds a single orchestrator run.
const defaultJobTimeout = time.Hour

// CreateImportJobInput is the operator's job configuration, validated once at
// creation and immutable afterwards.
type CreateImportJobInput struct {
	Name             string
	StoredPath       string
	OriginalFilename string
	Mode             string
	FieldMappings    models.FieldMappings
	UpdateFields     models.JSONStrings
	BatchSize        int
	AssemblyID       *int
	ElectionID       *int
}

// ImportJobService drives the import pipeline: it creates jobs and runs them
// asynchronously, streaming the file through the classifier in batches.
type ImportJobService struct {
	db         *gorm.DB
	jobs       ImportJobRepository
	people     PersonRepository
	geo        GeoResolver
	linker     ContextLinker
	classifier *RowClassifierService
	analyzer   *FileAnalyzerService
}

func NewImportJobService(db *gorm.DB) *ImportJobService {
	if db == nil {
		db = config.DB
	}
	people := NewGormPersonRepository(db)
	return &ImportJobService{
		db:         db,
		jobs:       NewGormImportJobRepository(db),
		people:     people,
		geo:        NewGormGeoResolver(db),
		linker:     NewGormContextLinker(db),
		classifier: NewRowClassifierService(people),
		analyzer:   NewFileAnalyzerService(),
	}
}

// NewImportJobServiceWith wires explicit collaborators. Tests use this to run
// the orchestrator against in-memory stores.
func NewImportJobServiceWith(jobs ImportJobRepository, people PersonRepository, geo GeoResolver, linker ContextLinker) *ImportJobService {
	return &ImportJobService{
		jobs:       jobs,
		people:     people,
		geo:        geo,
		linker:     linker,
		classifier: NewRowClassifierService(people),
		analyzer:   NewFileAnalyzerService(),
	}
}

// CreateJob validates the configuration, analyzes the stored file for the
// initial row-count estimate and persists the job in pending state. The caller
// dispatches Run afterwards.
func (s *ImportJobService) CreateJob(ctx context.Context, opCtx OperationContext, input *CreateImportJobInput) (*models.ImportJob, error) {
	if input == nil {
		return nil, errors.New("input is nil")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("job name is required")
	}
	switch input.Mode {
	case models.ImportModeInsert, models.ImportModeUpdate, models.ImportModeBoth:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, input.Mode)
	}
	if input.AssemblyID != nil && input.ElectionID != nil {
		return nil, ErrContextExclusive
	}

	analysis, err := s.analyzer.Analyze(input.StoredPath)
	if err != nil {
		return nil, err
	}
	mappings := NormalizeFieldMappings(input.FieldMappings)
	if err := ValidateFieldMappings(mappings, analysis.Headers); err != nil {
		return nil, err
	}
	if err := ValidateUpdateFields(input.UpdateFields); err != nil {
		return nil, err
	}

	job := &models.ImportJob{
		TenantID:         opCtx.TenantID,
		AssemblyID:       input.AssemblyID,
		ElectionID:       input.ElectionID,
		Name:             strings.TrimSpace(input.Name),
		OriginalFilename: input.OriginalFilename,
		StoredPath:       input.StoredPath,
		FileSize:         analysis.FileSize,
		Mode:             input.Mode,
		FieldMappings:    mappings,
		UpdateFields:     input.UpdateFields,
		BatchSize:        input.BatchSize,
		Status:           models.ImportJobStatusPending,
		TotalRows:        analysis.TotalRows,
		TotalIsEstimate:  analysis.IsEstimate,
		CreatedBy:        opCtx.ActorID,
	}
	if job.BatchSize <= 0 {
		job.BatchSize = models.DefaultImportBatchSize
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Run executes one pending job to a terminal status. It is meant to run in its
// own goroutine; jobs for different files proceed concurrently without
// coordination, while rows within a job stay strictly sequential so a later
// row can match a person an earlier row just created.
func (s *ImportJobService) Run(ctx context.Context, jobID uint) {
	ctx, cancel := context.WithTimeout(persistentContext(ctx), jobTimeout())
	defer cancel()

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		log.Printf("import job %d: load failed: %v", jobID, err)
		return
	}
	// The claim is the only gate: concurrent runners (API dispatch plus the
	// CLI, or a double dispatch) race on the guarded write and exactly one
	// proceeds to stream the file.
	now := time.Now()
	if err := s.jobs.ClaimPending(ctx, job.ID, now); err != nil {
		if errors.Is(err, ErrJobNotPending) {
			log.Printf("import job %d: not pending (status %s), skipping", jobID, job.Status)
			return
		}
		log.Printf("import job %d: failed to mark processing: %v", job.ID, err)
		return
	}
	job.Status = models.ImportJobStatusProcessing
	job.StartedAt = &now

	if runErr := s.processFile(ctx, job); runErr != nil {
		s.failJob(ctx, job, runErr)
		return
	}
}

type jobCounters struct {
	processed  int64
	successful int64
	failed     int64
	rowErrors  models.ImportRowErrors
	dirty      bool
}

func (c *jobCounters) addError(row int64, msg string) {
	c.failed++
	if len(c.rowErrors) < maxStoredRowErrors {
		c.rowErrors = append(c.rowErrors, models.ImportRowError{Row: row, Message: msg})
	}
}

// processFile streams the job's file row by row. Row-level failures are
// absorbed into the error list; only file-level failures abort the job.
func (s *ImportJobService) processFile(ctx context.Context, job *models.ImportJob) error {
	f, err := os.Open(job.StoredPath)
	if err != nil {
		return fmt.Errorf("cannot open import file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReaderSize(f, 64*1024))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return ErrEmptyFile
		}
		return fmt.Errorf("cannot read header row: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	opCtx := OperationContext{TenantID: job.TenantID, ActorID: job.CreatedBy}
	batchSize := job.EffectiveBatchSize()

	counters := &jobCounters{}
	var rowNumber int64
	inBatch := 0

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import interrupted: %w", err)
		}

		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		rowNumber++
		if readErr != nil {
			counters.processed++
			counters.addError(rowNumber, fmt.Sprintf("malformed row: %v", readErr))
			counters.dirty = true
		} else if !hasAnyValue(record) {
			rowNumber--
			continue
		} else {
			s.processRow(ctx, opCtx, job, headers, record, rowNumber, counters)
		}

		inBatch++
		if inBatch >= batchSize {
			if err := s.flushCounters(ctx, job.ID, counters); err != nil {
				return fmt.Errorf("cannot persist progress: %w", err)
			}
			inBatch = 0
		}
	}

	if err := s.flushCounters(ctx, job.ID, counters); err != nil {
		return fmt.Errorf("cannot persist progress: %w", err)
	}

	// The estimate served its purpose; the exact count replaces it.
	completedAt := time.Now()
	err = s.jobs.UpdateFields(ctx, job.ID, map[string]interface{}{
		"status":            models.ImportJobStatusCompleted,
		"completed_at":      completedAt,
		"total_rows":        rowNumber,
		"total_is_estimate": false,
	})
	if err != nil {
		return fmt.Errorf("cannot mark job completed: %w", err)
	}

	job.Status = models.ImportJobStatusCompleted
	job.CompletedAt = &completedAt
	job.TotalRows = rowNumber
	job.ProcessedRows = counters.processed
	job.SuccessfulRows = counters.successful
	job.FailedRows = counters.failed
	s.sendCompletionMail(ctx, job)

	return nil
}

// processRow maps, resolves and classifies one row, then applies the verdict.
// Every failure here is a row error, never fatal.
func (s *ImportJobService) processRow(ctx context.Context, opCtx OperationContext, job *models.ImportJob, headers, record []string, rowNumber int64, counters *jobCounters) {
	counters.processed++
	counters.dirty = true

	raw, mapped := ApplyFieldMappings(job.FieldMappings, headers, record)

	resolved, err := s.resolveLookups(ctx, mapped)
	if err != nil {
		counters.addError(rowNumber, err.Error())
		return
	}

	if email := resolved[TargetEmail]; email != "" && !utils.ValidateEmail(utils.NormalizeEmail(email)) {
		counters.addError(rowNumber, fmt.Sprintf("invalid email %q", email))
		return
	}

	classification, err := s.classifier.Classify(ctx, opCtx, mapped, job.Mode)
	if err != nil {
		counters.addError(rowNumber, fmt.Sprintf("classification failed: %v", err))
		return
	}

	switch classification.Verdict {
	case VerdictInsert:
		if job.Mode == models.ImportModeUpdate {
			counters.addError(rowNumber, "no existing record to update")
			return
		}
		if err := s.insertPerson(ctx, opCtx, job, resolved); err != nil {
			counters.addError(rowNumber, fmt.Sprintf("insert failed: %v", err))
			return
		}
		counters.successful++

	case VerdictUpdate:
		target := classification.EmailMatch
		if target == nil {
			target = classification.DocumentMatch
		}
		fields := BuildUpdateFields(resolved, job.UpdateFields)
		if err := s.people.Update(ctx, opCtx.TenantID, target.ID, fields); err != nil {
			counters.addError(rowNumber, fmt.Sprintf("update failed: %v", err))
			return
		}
		counters.successful++

	case VerdictConflict:
		conflict := &models.ImportConflict{
			ID:          uuid.NewString(),
			ImportJobID: job.ID,
			RowNumber:   rowNumber,
			RawRow:      raw,
			ResolvedRow: resolved,
			Reason:      classification.ConflictReason,
		}
		if classification.EmailMatch != nil {
			id := classification.EmailMatch.ID
			conflict.EmailMatchID = &id
		}
		if classification.DocumentMatch != nil {
			id := classification.DocumentMatch.ID
			conflict.DocumentMatchID = &id
		}
		if err := s.jobs.AddConflict(ctx, conflict); err != nil {
			// A conflict we cannot record degrades to a row error; the row
			// must still be accounted for somewhere.
			counters.addError(rowNumber, fmt.Sprintf("cannot record conflict: %v", err))
		}
	}
}

// resolveLookups replaces location names with catalog ids, producing the
// resolved representation conflicts carry alongside the raw one.
func (s *ImportJobService) resolveLookups(ctx context.Context, mapped models.JSONMap) (models.JSONMap, error) {
	resolved := make(models.JSONMap, len(mapped))
	for k, v := range mapped {
		switch k {
		case TargetTerritory:
			if utils.IsBlank(v) {
				continue
			}
			id, err := s.geo.ResolveTerritory(ctx, v)
			if err != nil {
				return nil, fmt.Errorf("territory lookup failed: %w", err)
			}
			resolved["territory_id"] = strconv.Itoa(id)
		case TargetMunicipality:
			if utils.IsBlank(v) {
				continue
			}
			id, err := s.geo.ResolveMunicipality(ctx, v)
			if err != nil {
				return nil, fmt.Errorf("municipality lookup failed: %w", err)
			}
			resolved["municipality_id"] = strconv.Itoa(id)
		default:
			resolved[k] = v
		}
	}
	return resolved, nil
}

// insertPerson creates a person from a resolved row and links the originating
// context when the job has one.
func (s *ImportJobService) insertPerson(ctx context.Context, opCtx OperationContext, job *models.ImportJob, resolved models.JSONMap) error {
	person, err := BuildPerson(opCtx.TenantID, resolved)
	if err != nil {
		return err
	}
	if err := s.people.Create(ctx, person); err != nil {
		return err
	}
	if job.HasContext() {
		if err := s.linker.Link(ctx, job, person.ID); err != nil {
			// The person exists; a failed link is logged, not fatal.
			log.Printf("import job %d: failed to link person %d to context: %v", job.ID, person.ID, err)
		}
	}
	return nil
}

func (s *ImportJobService) flushCounters(ctx context.Context, jobID uint, counters *jobCounters) error {
	if !counters.dirty {
		return nil
	}
	err := s.jobs.UpdateFields(ctx, jobID, map[string]interface{}{
		"processed_rows":  counters.processed,
		"successful_rows": counters.successful,
		"failed_rows":     counters.failed,
		"row_errors":      counters.rowErrors,
		"last_heartbeat":  time.Now(),
	})
	if err != nil {
		return err
	}
	counters.dirty = false
	return nil
}

func (s *ImportJobService) failJob(ctx context.Context, job *models.ImportJob, cause error) {
	log.Printf("import job %d failed: %v", job.ID, cause)
	msg := cause.Error()
	if len(msg) > 2000 {
		msg = msg[:1997] + "..."
	}
	err := s.jobs.UpdateFields(persistentContext(ctx), job.ID, map[string]interface{}{
		"status":        models.ImportJobStatusFailed,
		"completed_at":  time.Now(),
		"error_message": msg,
	})
	if err != nil {
		log.Printf("import job %d: failed to mark failed: %v", job.ID, err)
	}
}

// sendCompletionMail is best effort; delivery problems never touch job state.
func (s *ImportJobService) sendCompletionMail(ctx context.Context, job *models.ImportJob) {
	if s.db == nil {
		return
	}
	var creator models.User
	if err := s.db.WithContext(ctx).Where("user_id = ?", job.CreatedBy).First(&creator).Error; err != nil {
		log.Printf("import job %d: cannot load creator for notification: %v", job.ID, err)
		return
	}
	body := fmt.Sprintf(
		"<p>Import <strong>%s</strong> finished.</p><ul><li>Rows: %d</li><li>Successful: %d</li><li>Failed: %d</li></ul>",
		job.Name, job.TotalRows, job.SuccessfulRows, job.FailedRows,
	)
	if err := config.SendMail([]string{creator.Email}, "Import completed: "+job.Name, body); err != nil {
		log.Printf("import job %d: completion mail failed: %v", job.ID, err)
	}
}

func jobTimeout() time.Duration {
	if raw := os.Getenv("IMPORT_JOB_TIMEOUT_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultJobTimeout
}

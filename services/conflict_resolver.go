package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/models"
	"github.com/danfelbm/astra-sub000/utils"

	"gorm.io/gorm"
)

var (
	ErrInvalidResolution     = errors.New("invalid resolution strategy")
	ErrInvalidMergeSelection = errors.New("invalid merge selection")
	ErrNoMatchedRecord       = errors.New("conflict has no matched record")
)

// Resolution strategies as the API accepts them.
const (
	StrategySkip        = "skip"
	StrategyUpdate      = "update"
	StrategyMerge       = "merge"
	StrategyForceCreate = "force_create"
)

// Merge selection sources.
const (
	MergeFromCSV      = "csv"
	MergeFromExisting = "existing"
)

var strategyResolutions = map[string]string{
	StrategySkip:        models.ResolutionSkipped,
	StrategyUpdate:      models.ResolutionUpdated,
	StrategyMerge:       models.ResolutionMerged,
	StrategyForceCreate: models.ResolutionForceCreated,
}

// ConflictResolverService applies one of the four operator strategies to a
// stored conflict. Resolving claims the conflict row first (a guarded write),
// so the same conflict can only ever mutate the Person store once; resolving
// an already-resolved conflict is rejected with ErrConflictAlreadyResolved.
type ConflictResolverService struct {
	jobs   ImportJobRepository
	people PersonRepository
	linker ContextLinker
}

func NewConflictResolverService(db *gorm.DB) *ConflictResolverService {
	if db == nil {
		db = config.DB
	}
	return &ConflictResolverService{
		jobs:   NewGormImportJobRepository(db),
		people: NewGormPersonRepository(db),
		linker: NewGormContextLinker(db),
	}
}

// NewConflictResolverServiceWith wires explicit collaborators for tests.
func NewConflictResolverServiceWith(jobs ImportJobRepository, people PersonRepository, linker ContextLinker) *ConflictResolverService {
	return &ConflictResolverService{jobs: jobs, people: people, linker: linker}
}

// Resolve applies strategy to the conflict and returns the resolved row.
// mergeSelections is only consulted for the merge strategy.
func (s *ConflictResolverService) Resolve(ctx context.Context, opCtx OperationContext, jobID uint, conflictID, strategy string, mergeSelections map[string]string) (*models.ImportConflict, error) {
	resolution, ok := strategyResolutions[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, strategy)
	}

	job, err := s.jobs.GetForTenant(ctx, opCtx.TenantID, jobID)
	if err != nil {
		return nil, err
	}
	conflict, err := s.jobs.GetConflict(ctx, jobID, conflictID)
	if err != nil {
		return nil, err
	}
	if conflict.Resolved {
		return nil, ErrConflictAlreadyResolved
	}

	if strategy == StrategyMerge {
		if err := validateMergeSelections(mergeSelections); err != nil {
			return nil, err
		}
	}

	// Claim first: exactly one concurrent resolver wins the guarded write and
	// proceeds to side effects; everyone else is rejected here.
	if err := s.jobs.ClaimConflict(ctx, jobID, conflict.ID, resolution, opCtx.ActorID); err != nil {
		return nil, err
	}

	if err := s.applyStrategy(ctx, opCtx, job, conflict, strategy, mergeSelections); err != nil {
		// Side effects failed after the claim; reopen so the operator can
		// retry once the underlying problem is fixed.
		if reopenErr := s.jobs.ReopenConflict(persistentContext(ctx), jobID, conflict.ID); reopenErr != nil {
			log.Printf("conflict %s: failed to reopen after error: %v", conflict.ID, reopenErr)
		}
		return nil, err
	}

	now := time.Now()
	conflict.Resolved = true
	conflict.Resolution = &resolution
	conflict.ResolvedAt = &now
	conflict.ResolvedBy = &opCtx.ActorID
	return conflict, nil
}

func (s *ConflictResolverService) applyStrategy(ctx context.Context, opCtx OperationContext, job *models.ImportJob, conflict *models.ImportConflict, strategy string, mergeSelections map[string]string) error {
	switch strategy {
	case StrategySkip:
		// No mutation at all.
		return nil

	case StrategyUpdate:
		return s.applyUpdate(ctx, opCtx, job, conflict)

	case StrategyMerge:
		return s.applyMerge(ctx, opCtx, job, conflict, mergeSelections)

	case StrategyForceCreate:
		return s.applyForceCreate(ctx, opCtx, job, conflict)
	}
	return fmt.Errorf("%w: %q", ErrInvalidResolution, strategy)
}

// applyUpdate writes the conflict's resolved row onto the matched record with
// blank-preserving semantics, then repairs the context link classification
// deferred.
func (s *ConflictResolverService) applyUpdate(ctx context.Context, opCtx OperationContext, job *models.ImportJob, conflict *models.ImportConflict) error {
	targetID := conflict.SingleMatchID()
	if targetID == nil {
		return ErrNoMatchedRecord
	}
	existing, err := s.people.FindByID(ctx, opCtx.TenantID, *targetID)
	if err != nil {
		return err
	}

	fields := BuildUpdateFields(conflict.ResolvedRow, job.UpdateFields)
	if err := s.people.Update(ctx, opCtx.TenantID, existing.ID, fields); err != nil {
		return err
	}

	return s.linkContext(ctx, job, existing.ID)
}

// applyMerge builds the final record from per-field operator choices: csv
// fields follow update semantics, existing fields keep the stored value.
func (s *ConflictResolverService) applyMerge(ctx context.Context, opCtx OperationContext, job *models.ImportJob, conflict *models.ImportConflict, selections map[string]string) error {
	targetID := conflict.SingleMatchID()
	if targetID == nil {
		return ErrNoMatchedRecord
	}
	existing, err := s.people.FindByID(ctx, opCtx.TenantID, *targetID)
	if err != nil {
		return err
	}

	csvFields := make(models.JSONStrings, 0, len(selections))
	for field, source := range selections {
		if source == MergeFromCSV {
			csvFields = append(csvFields, strings.TrimSpace(field))
		}
		// existing-sourced fields keep the stored value verbatim: no write.
	}

	fields := BuildUpdateFields(conflict.ResolvedRow, csvFields)
	if err := s.people.Update(ctx, opCtx.TenantID, existing.ID, fields); err != nil {
		return err
	}

	return s.linkContext(ctx, job, existing.ID)
}

// applyForceCreate creates a brand-new person despite the collision. The
// colliding identity fields are deterministically disambiguated so uniqueness
// constraints hold, and the record gets the fixed temporary credential.
func (s *ConflictResolverService) applyForceCreate(ctx context.Context, opCtx OperationContext, job *models.ImportJob, conflict *models.ImportConflict) error {
	resolved := make(models.JSONMap, len(conflict.ResolvedRow))
	for k, v := range conflict.ResolvedRow {
		resolved[k] = v
	}

	marker := time.Now().Format("20060102150405")
	if conflict.EmailMatchID != nil && !utils.IsBlank(resolved[TargetEmail]) {
		resolved[TargetEmail] = fmt.Sprintf("dup-%s-%s", marker, utils.NormalizeEmail(resolved[TargetEmail]))
	}
	if conflict.DocumentMatchID != nil && !utils.IsBlank(resolved[TargetDocumentNumber]) {
		resolved[TargetDocumentNumber] = fmt.Sprintf("DUP-%s-%s", marker, utils.NormalizeDocument(resolved[TargetDocumentNumber]))
	}

	person, err := BuildPerson(opCtx.TenantID, resolved)
	if err != nil {
		return err
	}
	if err := s.people.Create(ctx, person); err != nil {
		return err
	}

	return s.linkContext(ctx, job, person.ID)
}

func (s *ConflictResolverService) linkContext(ctx context.Context, job *models.ImportJob, personID int) error {
	if !job.HasContext() {
		return nil
	}
	return s.linker.Link(ctx, job, personID)
}

// RefreshConflict re-reads the live Person-store state for the conflict's
// matched record(s) so the operator decides against current data.
func (s *ConflictResolverService) RefreshConflict(ctx context.Context, opCtx OperationContext, jobID uint, conflictID string) (*models.ImportConflict, map[string]*models.Person, error) {
	if _, err := s.jobs.GetForTenant(ctx, opCtx.TenantID, jobID); err != nil {
		return nil, nil, err
	}
	conflict, err := s.jobs.GetConflict(ctx, jobID, conflictID)
	if err != nil {
		return nil, nil, err
	}

	matches := make(map[string]*models.Person, 2)
	if conflict.EmailMatchID != nil {
		person, err := s.people.FindByID(ctx, opCtx.TenantID, *conflict.EmailMatchID)
		if err != nil && !errors.Is(err, ErrPersonNotFound) {
			return nil, nil, err
		}
		matches["email"] = person
	}
	if conflict.DocumentMatchID != nil {
		person, err := s.people.FindByID(ctx, opCtx.TenantID, *conflict.DocumentMatchID)
		if err != nil && !errors.Is(err, ErrPersonNotFound) {
			return nil, nil, err
		}
		matches["document"] = person
	}

	return conflict, matches, nil
}

func validateMergeSelections(selections map[string]string) error {
	if len(selections) == 0 {
		return fmt.Errorf("%w: merge requires per-field selections", ErrInvalidMergeSelection)
	}
	for field, source := range selections {
		if source != MergeFromCSV && source != MergeFromExisting {
			return fmt.Errorf("%w: field %q has source %q", ErrInvalidMergeSelection, field, source)
		}
		if strings.TrimSpace(field) == "password" {
			return fmt.Errorf("%w: the credential field cannot be merged", ErrInvalidMergeSelection)
		}
		valid := false
		for _, key := range updateFieldKeys(strings.TrimSpace(field)) {
			if _, ok := importAttributeColumns[key]; ok {
				valid = true
			}
		}
		if !valid {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidMergeSelection, field)
		}
	}
	return nil
}

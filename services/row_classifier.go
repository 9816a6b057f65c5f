package services

import (
	"context"

	"github.com/danfelbm/astra-sub000/models"
	"github.com/danfelbm/astra-sub000/utils"
)

// RowVerdict is the classifier's decision for one decoded row.
type RowVerdict string

const (
	VerdictInsert   RowVerdict = "insert"
	VerdictUpdate   RowVerdict = "update"
	VerdictConflict RowVerdict = "conflict"
)

// Classification carries the verdict plus the match(es) that produced it, so
// the orchestrator can act without repeating the lookups.
type Classification struct {
	Verdict        RowVerdict
	EmailMatch     *models.Person
	DocumentMatch  *models.Person
	ConflictReason string
}

// RowClassifierService decides insert/update/conflict for each mapped row
// against the current Person-store state. It never silently merges and never
// silently duplicates: anything ambiguous, and any match that contradicts the
// operator's declared mode, surfaces as a conflict for a human to settle.
type RowClassifierService struct {
	people PersonRepository
}

func NewRowClassifierService(people PersonRepository) *RowClassifierService {
	return &RowClassifierService{people: people}
}

// Classify applies the decision table to one mapped row. mapped carries the
// target-attribute values produced by the field mapping.
func (s *RowClassifierService) Classify(ctx context.Context, opCtx OperationContext, mapped models.JSONMap, mode string) (*Classification, error) {
	email := utils.NormalizeEmail(mapped[TargetEmail])
	document := utils.NormalizeDocument(mapped[TargetDocumentNumber])

	var emailMatch, documentMatch *models.Person
	var err error

	if email != "" {
		emailMatch, err = s.people.FindByEmail(ctx, opCtx.TenantID, email)
		if err != nil {
			return nil, err
		}
	}
	if document != "" {
		documentMatch, err = s.people.FindByDocument(ctx, opCtx.TenantID, document)
		if err != nil {
			return nil, err
		}
	}

	// No existing record under either key: a clean insert.
	if emailMatch == nil && documentMatch == nil {
		return &Classification{Verdict: VerdictInsert}, nil
	}

	// Both keys matched but point at different people. Always ambiguous,
	// whatever the mode.
	if emailMatch != nil && documentMatch != nil && emailMatch.ID != documentMatch.ID {
		return &Classification{
			Verdict:        VerdictConflict,
			EmailMatch:     emailMatch,
			DocumentMatch:  documentMatch,
			ConflictReason: models.ConflictReasonAmbiguousIdentity,
		}, nil
	}

	// Exactly one existing record, via one or both keys.
	if mode == models.ImportModeInsert {
		// The operator said insert-only; upgrading to an update behind their
		// back is not an option, so the row is recorded for a decision.
		return &Classification{
			Verdict:        VerdictConflict,
			EmailMatch:     emailMatch,
			DocumentMatch:  documentMatch,
			ConflictReason: models.ConflictReasonModeMismatch,
		}, nil
	}

	return &Classification{
		Verdict:       VerdictUpdate,
		EmailMatch:    emailMatch,
		DocumentMatch: documentMatch,
	}, nil
}

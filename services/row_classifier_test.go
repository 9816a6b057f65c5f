package services

import (
	"context"
	"testing"

	"github.com/danfelbm/astra-sub000/models"
)

func TestClassifyDecisionTable(t *testing.T) {
	ana := &models.Person{ID: 1, TenantID: 7, Name: "Ana", Email: "ana@example.com", DocumentNumber: "100"}
	luis := &models.Person{ID: 2, TenantID: 7, Name: "Luis", Email: "luis@example.com", DocumentNumber: "200"}

	opCtx := OperationContext{TenantID: 7, ActorID: 1}

	tests := []struct {
		name        string
		mapped      models.JSONMap
		mode        string
		wantVerdict RowVerdict
		wantReason  string
	}{
		{
			name:        "no match inserts",
			mapped:      models.JSONMap{TargetEmail: "nueva@example.com", TargetDocumentNumber: "999"},
			mode:        models.ImportModeBoth,
			wantVerdict: VerdictInsert,
		},
		{
			name:        "email match updates in both mode",
			mapped:      models.JSONMap{TargetEmail: "ana@example.com"},
			mode:        models.ImportModeBoth,
			wantVerdict: VerdictUpdate,
		},
		{
			name:        "email matching is case and whitespace insensitive",
			mapped:      models.JSONMap{TargetEmail: "  ANA@Example.COM "},
			mode:        models.ImportModeUpdate,
			wantVerdict: VerdictUpdate,
		},
		{
			name:        "document match updates in update mode",
			mapped:      models.JSONMap{TargetDocumentNumber: " 200 "},
			mode:        models.ImportModeUpdate,
			wantVerdict: VerdictUpdate,
		},
		{
			name:        "both keys agreeing on one person updates",
			mapped:      models.JSONMap{TargetEmail: "ana@example.com", TargetDocumentNumber: "100"},
			mode:        models.ImportModeBoth,
			wantVerdict: VerdictUpdate,
		},
		{
			name:        "keys pointing at different people always conflict",
			mapped:      models.JSONMap{TargetEmail: "ana@example.com", TargetDocumentNumber: "200"},
			mode:        models.ImportModeBoth,
			wantVerdict: VerdictConflict,
			wantReason:  models.ConflictReasonAmbiguousIdentity,
		},
		{
			name:        "ambiguous pair conflicts even in insert mode",
			mapped:      models.JSONMap{TargetEmail: "luis@example.com", TargetDocumentNumber: "100"},
			mode:        models.ImportModeInsert,
			wantVerdict: VerdictConflict,
			wantReason:  models.ConflictReasonAmbiguousIdentity,
		},
		{
			name:        "match in insert-only mode conflicts instead of updating",
			mapped:      models.JSONMap{TargetEmail: "ana@example.com"},
			mode:        models.ImportModeInsert,
			wantVerdict: VerdictConflict,
			wantReason:  models.ConflictReasonModeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := NewRowClassifierService(newFakePersonRepo(ana, luis))
			got, err := classifier.Classify(context.Background(), opCtx, tt.mapped, tt.mode)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got.Verdict != tt.wantVerdict {
				t.Errorf("verdict = %s, want %s", got.Verdict, tt.wantVerdict)
			}
			if got.ConflictReason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.ConflictReason, tt.wantReason)
			}
		})
	}
}

func TestClassifyIsTenantScoped(t *testing.T) {
	other := &models.Person{ID: 1, TenantID: 99, Email: "ana@example.com"}
	classifier := NewRowClassifierService(newFakePersonRepo(other))

	got, err := classifier.Classify(context.Background(), OperationContext{TenantID: 7}, models.JSONMap{TargetEmail: "ana@example.com"}, models.ImportModeBoth)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Verdict != VerdictInsert {
		t.Errorf("verdict = %s, want insert; another tenant's records must be invisible", got.Verdict)
	}
}

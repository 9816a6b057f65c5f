package services

import (
	"errors"
	"testing"

	"github.com/danfelbm/astra-sub000/models"
)

func TestValidateFieldMappings(t *testing.T) {
	headers := []string{"Nombre", "Correo", "Cedula", "Telefono"}

	tests := []struct {
		name     string
		mappings models.FieldMappings
		wantErr  bool
	}{
		{
			name: "valid mapping",
			mappings: models.FieldMappings{
				{Source: "Nombre", Target: TargetName},
				{Source: "Correo", Target: TargetEmail},
			},
		},
		{
			name: "document number alone satisfies identity",
			mappings: models.FieldMappings{
				{Source: "Cedula", Target: TargetDocumentNumber},
			},
		},
		{
			name:     "empty mapping",
			mappings: nil,
			wantErr:  true,
		},
		{
			name: "source column missing from header",
			mappings: models.FieldMappings{
				{Source: "Apellido", Target: TargetEmail},
			},
			wantErr: true,
		},
		{
			name: "target outside the allow-list",
			mappings: models.FieldMappings{
				{Source: "Correo", Target: TargetEmail},
				{Source: "Telefono", Target: "password"},
			},
			wantErr: true,
		},
		{
			name: "duplicate target",
			mappings: models.FieldMappings{
				{Source: "Correo", Target: TargetEmail},
				{Source: "Nombre", Target: TargetEmail},
			},
			wantErr: true,
		},
		{
			name: "no identity attribute",
			mappings: models.FieldMappings{
				{Source: "Nombre", Target: TargetName},
				{Source: "Telefono", Target: TargetPhone},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldMappings(tt.mappings, headers)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMapping) {
					t.Errorf("ValidateFieldMappings = %v, want ErrInvalidMapping", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateFieldMappings failed: %v", err)
			}
		})
	}
}

func TestNormalizeFieldMappings(t *testing.T) {
	got := NormalizeFieldMappings(models.FieldMappings{
		{Source: " Correo ", Target: " email "},
		{Source: "Nombre", Target: TargetName},
	})
	want := models.FieldMappings{
		{Source: "Correo", Target: TargetEmail},
		{Source: "Nombre", Target: TargetName},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mapping %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestApplyFieldMappingsTrimsSources(t *testing.T) {
	// A padded mapping entry must still project its column; a validated
	// mapping that silently drops a key would lose the row's identity.
	_, mapped := ApplyFieldMappings(
		models.FieldMappings{{Source: " Correo ", Target: TargetEmail}},
		[]string{"Nombre", "Correo"},
		[]string{"Ana", "ana@example.com"},
	)
	if mapped[TargetEmail] != "ana@example.com" {
		t.Errorf("mapped email = %q, want the padded source matched", mapped[TargetEmail])
	}
}

func TestValidateUpdateFields(t *testing.T) {
	if err := ValidateUpdateFields(models.JSONStrings{TargetName, TargetPhone}); err != nil {
		t.Errorf("valid update fields rejected: %v", err)
	}
	if err := ValidateUpdateFields(nil); err != nil {
		t.Errorf("empty update fields rejected: %v", err)
	}
	if err := ValidateUpdateFields(models.JSONStrings{"password"}); !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("credential field accepted as updatable: %v", err)
	}
}

func TestApplyFieldMappings(t *testing.T) {
	mappings := models.FieldMappings{
		{Source: "Correo", Target: TargetEmail},
		{Source: "Nombre", Target: TargetName},
		{Source: "Extra", Target: TargetPhone},
	}
	headers := []string{"Nombre", "Correo"}
	record := []string{"  Ana Lopez ", " ana@example.com "}

	raw, mapped := ApplyFieldMappings(mappings, headers, record)

	// Raw keeps source values verbatim, mapped trims them.
	if raw["Nombre"] != "  Ana Lopez " {
		t.Errorf("raw name = %q", raw["Nombre"])
	}
	if mapped[TargetName] != "Ana Lopez" {
		t.Errorf("mapped name = %q", mapped[TargetName])
	}
	if mapped[TargetEmail] != "ana@example.com" {
		t.Errorf("mapped email = %q", mapped[TargetEmail])
	}
	// Columns absent from the record are simply not present.
	if _, ok := mapped[TargetPhone]; ok {
		t.Error("phone should be absent when its column is missing")
	}
}

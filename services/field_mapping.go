package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danfelbm/astra-sub000/models"
)

var ErrInvalidMapping = errors.New("invalid field mapping")

// Importable person attributes. The mapper rejects anything else, so rows can
// never smuggle values into unexpected columns (the credential field above all).
const (
	TargetName           = "name"
	TargetEmail          = "email"
	TargetDocumentType   = "document_type"
	TargetDocumentNumber = "document_number"
	TargetPhone          = "phone"
	TargetTerritory      = "territory"
	TargetMunicipality   = "municipality"
)

var importableTargets = map[string]bool{
	TargetName:           true,
	TargetEmail:          true,
	TargetDocumentType:   true,
	TargetDocumentNumber: true,
	TargetPhone:          true,
	TargetTerritory:      true,
	TargetMunicipality:   true,
}

// ImportableTargets lists the attributes a CSV column may map to, in the order
// the operator UI presents them.
func ImportableTargets() []string {
	return []string{
		TargetName,
		TargetEmail,
		TargetDocumentType,
		TargetDocumentNumber,
		TargetPhone,
		TargetTerritory,
		TargetMunicipality,
	}
}

// NormalizeFieldMappings trims every source and target, producing the
// canonical form jobs persist. Validation and row projection both index the
// header by trimmed names, so an untrimmed persisted entry would validate and
// then never match a column.
func NormalizeFieldMappings(mappings models.FieldMappings) models.FieldMappings {
	out := make(models.FieldMappings, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, models.FieldMapping{
			Source: strings.TrimSpace(m.Source),
			Target: strings.TrimSpace(m.Target),
		})
	}
	return out
}

// ValidateFieldMappings checks an operator-supplied mapping against the file
// headers and the importable-attribute allow-list. The mapping is immutable
// after job creation, so every rule is enforced here, once.
func ValidateFieldMappings(mappings models.FieldMappings, headers []string) error {
	if len(mappings) == 0 {
		return fmt.Errorf("%w: at least one mapping is required", ErrInvalidMapping)
	}

	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[strings.TrimSpace(h)] = true
	}

	seenTargets := make(map[string]bool, len(mappings))
	hasIdentity := false
	for _, m := range mappings {
		source := strings.TrimSpace(m.Source)
		target := strings.TrimSpace(m.Target)
		if source == "" || target == "" {
			return fmt.Errorf("%w: mapping entries need both source and target", ErrInvalidMapping)
		}
		if !headerSet[source] {
			return fmt.Errorf("%w: column %q not found in file header", ErrInvalidMapping, source)
		}
		if !importableTargets[target] {
			return fmt.Errorf("%w: %q is not an importable attribute", ErrInvalidMapping, target)
		}
		if seenTargets[target] {
			return fmt.Errorf("%w: attribute %q mapped twice", ErrInvalidMapping, target)
		}
		seenTargets[target] = true
		if target == TargetEmail || target == TargetDocumentNumber {
			hasIdentity = true
		}
	}

	if !hasIdentity {
		return fmt.Errorf("%w: mapping must include email or document_number so rows can be matched", ErrInvalidMapping)
	}

	return nil
}

// ValidateUpdateFields checks the fields-eligible-for-update list against the
// same allow-list. An empty list means all mapped fields are eligible.
func ValidateUpdateFields(fields models.JSONStrings) error {
	for _, f := range fields {
		if !importableTargets[strings.TrimSpace(f)] {
			return fmt.Errorf("%w: %q is not an updatable attribute", ErrInvalidMapping, f)
		}
	}
	return nil
}

// ApplyFieldMappings projects one CSV record onto the raw and mapped
// representations a row travels through the pipeline as.
func ApplyFieldMappings(mappings models.FieldMappings, headers []string, record []string) (raw models.JSONMap, mapped models.JSONMap) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.TrimSpace(h)] = i
	}

	raw = make(models.JSONMap, len(mappings))
	mapped = make(models.JSONMap, len(mappings))
	for _, m := range mappings {
		source := strings.TrimSpace(m.Source)
		i, ok := index[source]
		if !ok || i >= len(record) {
			continue
		}
		raw[source] = record[i]
		mapped[strings.TrimSpace(m.Target)] = strings.TrimSpace(record[i])
	}
	return raw, mapped
}

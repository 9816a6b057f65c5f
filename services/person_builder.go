package services

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danfelbm/astra-sub000/models"
	"github.com/danfelbm/astra-sub000/utils"
)

// importAttributeColumns maps resolved-row keys to person store columns.
var importAttributeColumns = map[string]string{
	TargetName:           "name",
	TargetEmail:          "email",
	TargetDocumentType:   "document_type",
	TargetDocumentNumber: "document_number",
	TargetPhone:          "phone",
	"territory_id":       "territory_id",
	"municipality_id":    "municipality_id",
}

// updateFieldKeys expands an update-scope attribute to the resolved-row keys
// it covers; the location targets were rewritten to id keys during resolution.
func updateFieldKeys(field string) []string {
	switch field {
	case TargetTerritory:
		return []string{"territory_id"}
	case TargetMunicipality:
		return []string{"municipality_id"}
	default:
		return []string{field}
	}
}

// BuildPerson constructs a new person from a resolved row, applying the
// normalization rules and the fixed temporary credential. Genuinely empty
// fields are left unset.
func BuildPerson(tenantID int, resolved models.JSONMap) (*models.Person, error) {
	person := &models.Person{TenantID: tenantID}

	if v := resolved[TargetName]; !utils.IsBlank(v) {
		person.Name = utils.NormalizeName(v)
	}
	if v := resolved[TargetEmail]; !utils.IsBlank(v) {
		person.Email = utils.NormalizeEmail(v)
	}
	if v := resolved[TargetDocumentType]; !utils.IsBlank(v) {
		dt := utils.SanitizeInput(v)
		person.DocumentType = &dt
	}
	if v := resolved[TargetDocumentNumber]; !utils.IsBlank(v) {
		person.DocumentNumber = utils.NormalizeDocument(v)
	}
	if v := resolved[TargetPhone]; !utils.IsBlank(v) {
		phone := utils.SanitizeInput(v)
		person.Phone = &phone
	}
	if v := resolved["territory_id"]; !utils.IsBlank(v) {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid territory id %q", v)
		}
		person.TerritoryID = &id
	}
	if v := resolved["municipality_id"]; !utils.IsBlank(v) {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid municipality id %q", v)
		}
		person.MunicipalityID = &id
	}

	if person.Email == "" && person.DocumentNumber == "" {
		return nil, errors.New("row has neither email nor document number")
	}

	hashed, err := utils.HashPassword(TemporaryImportPassword)
	if err != nil {
		return nil, err
	}
	person.Password = hashed

	return person, nil
}

// BuildUpdateFields produces the column updates for an existing person from a
// resolved row. Blank CSV values are omitted so existing data survives, the
// credential column is never touched, and scope (when non-empty) restricts
// which attributes may change.
func BuildUpdateFields(resolved models.JSONMap, scope models.JSONStrings) map[string]interface{} {
	allowed := make(map[string]bool)
	if len(scope) == 0 {
		for key := range importAttributeColumns {
			allowed[key] = true
		}
	} else {
		for _, field := range scope {
			for _, key := range updateFieldKeys(field) {
				allowed[key] = true
			}
		}
	}

	fields := make(map[string]interface{})
	for key, column := range importAttributeColumns {
		if !allowed[key] {
			continue
		}
		value, ok := resolved[key]
		if !ok || utils.IsBlank(value) {
			continue
		}
		switch key {
		case TargetName:
			fields[column] = utils.NormalizeName(value)
		case TargetEmail:
			fields[column] = utils.NormalizeEmail(value)
		case TargetDocumentNumber:
			fields[column] = utils.NormalizeDocument(value)
		case "territory_id", "municipality_id":
			if id, err := strconv.Atoi(value); err == nil {
				fields[column] = id
			}
		default:
			fields[column] = utils.SanitizeInput(value)
		}
	}
	return fields
}

package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName trims and title-cases a person name before storage.
func NormalizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(trimmed))
}

// NormalizeEmail lower-cases and trims an email for storage and matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeDocument trims a document identity value.
func NormalizeDocument(doc string) string {
	return strings.TrimSpace(doc)
}

// IsBlank reports whether a CSV value counts as empty. Blank values never
// overwrite existing stored data.
func IsBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}

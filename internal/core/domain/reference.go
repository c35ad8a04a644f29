package domain

import (
	"errors"
	"regexp"
	"strings"
)

// FieldPattern matches field names against one critical-field category.
// Patterns are evaluated in catalog order; the first match names the
// category in the rationale.
type FieldPattern struct {
	Expr        *regexp.Regexp
	Name        string
	Description string
}

// ReferenceData is the immutable risk catalog consulted by the classifier.
// Table and transaction-code keys are upper-case; values are human-readable
// descriptions used to enrich rationales. It is passed explicitly into the
// classifier so tests can substitute synthetic catalogs.
type ReferenceData struct {
	SensitiveTables map[string]string
	SensitiveTCodes map[string]string

	// Descriptions for tables/tcodes that are not sensitive but still worth
	// naming in Low-risk rationales.
	CommonTables map[string]string
	CommonTCodes map[string]string

	FieldPatterns []FieldPattern

	// ExcludedFields are exact field names that must never trigger a
	// field-pattern rule (short generic names like KEY that substring
	// patterns would otherwise flag).
	ExcludedFields map[string]struct{}
}

func (r ReferenceData) Validate() error {
	if len(r.SensitiveTables) == 0 {
		return errors.New("reference data: no sensitive tables")
	}
	if len(r.SensitiveTCodes) == 0 {
		return errors.New("reference data: no sensitive transaction codes")
	}
	for _, p := range r.FieldPatterns {
		if p.Expr == nil || p.Name == "" {
			return errors.New("reference data: field pattern missing expression or name")
		}
	}
	return nil
}

func (r ReferenceData) IsSensitiveTable(table string) bool {
	_, ok := r.SensitiveTables[strings.ToUpper(strings.TrimSpace(table))]
	return ok
}

func (r ReferenceData) IsSensitiveTCode(tcode string) bool {
	_, ok := r.SensitiveTCodes[strings.ToUpper(strings.TrimSpace(tcode))]
	return ok
}

func (r ReferenceData) IsExcludedField(field string) bool {
	_, ok := r.ExcludedFields[strings.ToUpper(strings.TrimSpace(field))]
	return ok
}

// TableDescription returns the catalog description for a table, preferring
// the sensitive entry, or "" when unknown.
func (r ReferenceData) TableDescription(table string) string {
	key := strings.ToUpper(strings.TrimSpace(table))
	if d, ok := r.SensitiveTables[key]; ok {
		return d
	}
	return r.CommonTables[key]
}

// TCodeDescription returns the catalog description for a transaction code,
// preferring the sensitive entry, or "" when unknown.
func (r ReferenceData) TCodeDescription(tcode string) string {
	key := strings.ToUpper(strings.TrimSpace(tcode))
	if d, ok := r.SensitiveTCodes[key]; ok {
		return d
	}
	return r.CommonTCodes[key]
}

// MatchFieldPattern returns the first catalog pattern matching the field
// name, honoring the excluded-field list.
func (r ReferenceData) MatchFieldPattern(field string) (FieldPattern, bool) {
	field = strings.TrimSpace(field)
	if field == "" || r.IsExcludedField(field) {
		return FieldPattern{}, false
	}
	for _, p := range r.FieldPatterns {
		if p.Expr.MatchString(field) {
			return p, true
		}
	}
	return FieldPattern{}, false
}

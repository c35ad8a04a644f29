// Package refdata loads the risk catalog the classifier consults: sensitive
// tables and transaction codes, critical-field patterns and the excluded-field
// list. A curated default catalog ships embedded; deployments can override it
// with a YAML file of the same shape, which is validated against an embedded
// JSON schema before use.
package refdata

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/audithound/saptrail/internal/core/domain"
)

//go:embed defaults.yaml schema.json
var files embed.FS

type catalogFile struct {
	SensitiveTables map[string]string  `yaml:"sensitive_tables"`
	SensitiveTCodes map[string]string  `yaml:"sensitive_tcodes"`
	CommonTables    map[string]string  `yaml:"common_tables"`
	CommonTCodes    map[string]string  `yaml:"common_tcodes"`
	FieldPatterns   []fieldPatternFile `yaml:"field_patterns"`
	ExcludedFields  []string           `yaml:"excluded_fields"`
}

type fieldPatternFile struct {
	Pattern     string `yaml:"pattern"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Default returns the embedded catalog.
func Default() (domain.ReferenceData, error) {
	raw, err := files.ReadFile("defaults.yaml")
	if err != nil {
		return domain.ReferenceData{}, fmt.Errorf("read embedded catalog: %w", err)
	}
	return parse(raw)
}

// Load reads a catalog override from path.
func Load(path string) (domain.ReferenceData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ReferenceData{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	ref, err := parse(raw)
	if err != nil {
		return domain.ReferenceData{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return ref, nil
}

func parse(raw []byte) (domain.ReferenceData, error) {
	if err := validateAgainstSchema(raw); err != nil {
		return domain.ReferenceData{}, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.ReferenceData{}, fmt.Errorf("parse catalog: %w", err)
	}

	ref := domain.ReferenceData{
		SensitiveTables: upperKeys(file.SensitiveTables),
		SensitiveTCodes: upperKeys(file.SensitiveTCodes),
		CommonTables:    upperKeys(file.CommonTables),
		CommonTCodes:    upperKeys(file.CommonTCodes),
		ExcludedFields:  make(map[string]struct{}, len(file.ExcludedFields)),
	}
	for _, f := range file.ExcludedFields {
		ref.ExcludedFields[strings.ToUpper(strings.TrimSpace(f))] = struct{}{}
	}
	for _, p := range file.FieldPatterns {
		expr, err := regexp.Compile(p.Pattern)
		if err != nil {
			return domain.ReferenceData{}, fmt.Errorf("field pattern %q: %w", p.Name, err)
		}
		ref.FieldPatterns = append(ref.FieldPatterns, domain.FieldPattern{
			Expr:        expr,
			Name:        p.Name,
			Description: p.Description,
		})
	}

	if err := ref.Validate(); err != nil {
		return domain.ReferenceData{}, err
	}
	return ref, nil
}

// validateAgainstSchema converts the YAML document to JSON and validates it
// with the embedded schema, so override files fail with field-level messages
// instead of surfacing later as classifier misbehavior.
func validateAgainstSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert catalog to json: %w", err)
	}

	schemaRaw, err := files.ReadFile("schema.json")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaRaw)); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(asJSON, &v); err != nil {
		return fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("catalog does not match schema: %w", err)
	}
	return nil
}

func upperKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

package refdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	ref, err := Default()
	if err != nil {
		t.Fatalf("embedded catalog must load: %v", err)
	}
	if !ref.IsSensitiveTable("usr02") {
		t.Fatal("USR02 missing from sensitive tables")
	}
	if !ref.IsSensitiveTCode("SU01") {
		t.Fatal("SU01 missing from sensitive transaction codes")
	}
	if !ref.IsExcludedField("sperm") {
		t.Fatal("SPERM missing from excluded fields")
	}
	if _, ok := ref.MatchFieldPattern("BCODE"); !ok {
		t.Fatal("BCODE must match the password pattern")
	}
	if _, ok := ref.MatchFieldPattern("QUAN"); ok {
		t.Fatal("excluded field must not match any pattern")
	}
}

func TestDefaultCatalogFieldCategories(t *testing.T) {
	ref, err := Default()
	if err != nil {
		t.Fatalf("embedded catalog must load: %v", err)
	}

	cases := []struct {
		field string
		want  string
	}{
		{"USR02_PASSWORD", "Password field"},
		{"AUTH_OBJECT", "Authorization field"},
		{"AGR_NAME", "Role assignment field"},
		{"ACCESS_LEVEL", "Access control field"},
		{"CREDENTIAL", "Credential field"},
		{"UFLAG", "Account lock field"},
		{"GLTGB", "Validity date field"},
		{"BANKN", "Bank detail field"},
		{"NET_AMOUNT", "Financial amount field"},
		{"CURRENCY", "Currency field"},
		{"ACCOUNT_NO", "Account field"},
		{"PAYMENT_METHOD", "Payment field"},
		{"VENDOR_ID", "Vendor master data field"},
		{"CUSTOMER_NO", "Customer master data field"},
		{"EMPLOYEE_ID", "Employee data field"},
		{"CONFIG_VALUE", "Configuration field"},
		{"SETTING_NAME", "System setting field"},
		{"PARAMETER", "Parameter field"},
	}
	for _, tc := range cases {
		p, ok := ref.MatchFieldPattern(tc.field)
		if !ok {
			t.Errorf("field %s: no pattern matched, want %q", tc.field, tc.want)
			continue
		}
		if p.Name != tc.want {
			t.Errorf("field %s: matched %q, want %q", tc.field, p.Name, tc.want)
		}
	}
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
sensitive_tables:
  ZSECRET: "Custom secret table"
sensitive_tcodes:
  ZADM: "Custom admin transaction"
field_patterns:
  - pattern: "(?i)TOKEN"
    name: "Token field"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	ref, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ref.IsSensitiveTable("ZSECRET") {
		t.Fatal("override table missing")
	}
	if p, ok := ref.MatchFieldPattern("api_token"); !ok || p.Name != "Token field" {
		t.Fatalf("override pattern not applied: %+v ok=%v", p, ok)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	// sensitive_tcodes missing and an unknown key present.
	content := `
sensitive_tables:
  USR02: "x"
surprise: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema validation error, got %v", err)
	}
}

func TestLoadRejectsBadRegexp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `
sensitive_tables:
  USR02: "x"
sensitive_tcodes:
  SU01: "x"
field_patterns:
  - pattern: "("
    name: "Broken"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "Broken") {
		t.Fatalf("expected pattern compile error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

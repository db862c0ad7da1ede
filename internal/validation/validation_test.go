package validation

import (
	"testing"
)

func TestRequired(t *testing.T) {
	if err := Required("clientId", "abc")(); err != nil {
		t.Errorf("non-empty value should pass, got %v", err)
	}
	if err := Required("clientId", "  ")(); err == nil {
		t.Error("whitespace-only value should fail")
	}
}

func TestPositive(t *testing.T) {
	if err := Positive("materiality", 100000)(); err != nil {
		t.Errorf("positive value should pass, got %v", err)
	}
	if err := Positive("materiality", 0)(); err == nil {
		t.Error("zero should fail")
	}
	if err := Positive("materiality", -5)(); err == nil {
		t.Error("negative should fail")
	}
}

func TestPercentage(t *testing.T) {
	for _, v := range []float64{0.5, 50, 99.9} {
		if err := Percentage("confidenceLevel", v)(); err != nil {
			t.Errorf("Percentage(%v) should pass, got %v", v, err)
		}
	}
	for _, v := range []float64{0, -1, 100, 150} {
		if err := Percentage("confidenceLevel", v)(); err == nil {
			t.Errorf("Percentage(%v) should fail", v)
		}
	}
}

func TestFiscalYear(t *testing.T) {
	if err := FiscalYear("fiscalYear", 2025)(); err != nil {
		t.Errorf("2025 should pass, got %v", err)
	}
	if err := FiscalYear("fiscalYear", 25)(); err == nil {
		t.Error("two-digit year should fail")
	}
}

func TestOneOf(t *testing.T) {
	if err := OneOf("method", "mus", "srs", "systematic", "mus")(); err != nil {
		t.Errorf("allowed value should pass, got %v", err)
	}
	if err := OneOf("method", "quantum", "srs", "systematic", "mus")(); err == nil {
		t.Error("disallowed value should fail")
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	errs := Validate(
		Required("clientId", ""),
		Positive("materiality", -1),
		Percentage("confidenceLevel", 95),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs.Error() == "" {
		t.Error("Error() should describe the first failure")
	}
}

func TestSanitizeString(t *testing.T) {
	got := SanitizeString("  hello\x00world  ", 8)
	if got != "hellowo" {
		t.Errorf("SanitizeString = %q", got)
	}
}

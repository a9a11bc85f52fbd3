package calculator

import (
	"math"
	"strings"
	"testing"

	"github.com/seenimoa/calcthis/pkg/models"
)

func TestValidateInputsExamples(t *testing.T) {
	tests := []struct {
		name   string
		in     models.Inputs
		valid  bool
		errors []string
	}{
		{"negative value", models.Inputs{Value: models.Float(-5)}, false, []string{MsgValueNonNegative}},
		{"rate above range", models.Inputs{Rate: models.Float(150)}, false, []string{MsgRateRange}},
		{"empty", models.Inputs{}, true, []string{}},
		{"rate below range", models.Inputs{Rate: models.Float(-0.01)}, false, []string{MsgRateRange}},
		{"both invalid", models.Inputs{Value: models.Float(-1), Rate: models.Float(101)}, false, []string{MsgValueNonNegative, MsgRateRange}},
		{"zero value and rate", models.Inputs{Value: models.Float(0), Rate: models.Float(0)}, true, []string{}},
		{"rate upper bound", models.Inputs{Value: models.Float(10), Rate: models.Float(100)}, true, []string{}},
		{"amount and quantity ignored", models.Inputs{Amount: models.Float(-10), Quantity: models.Float(-3)}, true, []string{}},
		{"NaN value", models.Inputs{Value: models.Float(math.NaN())}, false, []string{MsgValueNonNegative}},
		{"NaN rate", models.Inputs{Rate: models.Float(math.NaN())}, false, []string{MsgRateRange}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateInputs(tt.in)
			if got.IsValid != tt.valid {
				t.Errorf("IsValid: got %v, want %v", got.IsValid, tt.valid)
			}
			if got.Errors == nil {
				t.Fatal("Errors must never be nil")
			}
			if len(got.Errors) != len(tt.errors) {
				t.Fatalf("Errors: got %v, want %v", got.Errors, tt.errors)
			}
			for i := range tt.errors {
				if got.Errors[i] != tt.errors[i] {
					t.Errorf("Errors[%d]: got %q, want %q", i, got.Errors[i], tt.errors[i])
				}
			}
		})
	}
}

func TestValidateInputsProperties(t *testing.T) {
	values := []float64{-1000, -1, -0.0001, 0, 0.5, 1, 99, 1e9}
	rates := []float64{-50, -0.1, 0, 0.1, 50, 99.9, 100, 100.1, 1000}

	for _, v := range values {
		for _, r := range rates {
			got := ValidateInputs(models.Inputs{Value: models.Float(v), Rate: models.Float(r)})

			valueBad := v < 0
			rateBad := r < 0 || r > 100
			if got.IsValid == (valueBad || rateBad) {
				t.Errorf("value=%v rate=%v: IsValid=%v", v, r, got.IsValid)
			}
			if valueBad && !containsSubstring(got.Errors, "non-negative") {
				t.Errorf("value=%v: missing non-negative error in %v", v, got.Errors)
			}
			if rateBad && !containsSubstring(got.Errors, "between 0 and 100") {
				t.Errorf("rate=%v: missing range error in %v", r, got.Errors)
			}
			if !valueBad && !rateBad && len(got.Errors) != 0 {
				t.Errorf("value=%v rate=%v: unexpected errors %v", v, r, got.Errors)
			}
		}
	}
}

func TestQuickValidate(t *testing.T) {
	fields := []FieldSpec{
		{ID: "amount", Label: "Principal", Required: true, Min: models.Float(1000), Max: models.Float(1e6)},
		{ID: "quantity", Label: "Years", Min: models.Float(1), Max: models.Float(40)},
		{ID: "rate", Required: true},
	}

	issues := QuickValidate(fields, models.Inputs{Amount: models.Float(500), Quantity: models.Float(50)})
	want := map[string]string{
		"amount":   "Principal must be at least 1000",
		"quantity": "Years cannot exceed 40",
		"rate":     "rate is required",
	}
	if len(issues) != len(want) {
		t.Fatalf("got %d issues, want %d: %+v", len(issues), len(want), issues)
	}
	for _, is := range issues {
		if want[is.Field] != is.Message {
			t.Errorf("%s: got %q, want %q", is.Field, is.Message, want[is.Field])
		}
	}

	if issues := QuickValidate(fields, models.Inputs{Amount: models.Float(2000), Rate: models.Float(5)}); len(issues) != 0 {
		t.Errorf("expected no issues, got %+v", issues)
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

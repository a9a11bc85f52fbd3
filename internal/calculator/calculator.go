// Package calculator defines the calculator abstraction, the shared input
// validation rules, and the keyed registry that calculators register into.
package calculator

import (
	"context"
	"fmt"
	"strings"

	"github.com/seenimoa/calcthis/pkg/models"
)

// FieldSpec describes one input field as presented to a user.
type FieldSpec struct {
	ID          string   `json:"id"          yaml:"id"` // one of models.InputNames
	Label       string   `json:"label"       yaml:"label"`
	Type        string   `json:"type"        yaml:"type"` // "number", "percent", "currency"
	Required    bool     `json:"required"    yaml:"required"`
	Min         *float64 `json:"min,omitempty"  yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"  yaml:"max,omitempty"`
	Step        float64  `json:"step,omitempty" yaml:"step,omitempty"`
	Unit        string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Example is a worked example shipped with a calculator. When Expected is
// set the QA runner treats it as an accuracy benchmark.
type Example struct {
	Name        string        `json:"name"                  yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs      models.Inputs `json:"inputs"                yaml:"inputs"`
	Expected    *float64      `json:"expected,omitempty"    yaml:"expected,omitempty"`
	Tolerance   float64       `json:"tolerance,omitempty"   yaml:"tolerance,omitempty"` // absolute
}

// RiskThresholds maps a numeric result onto a RiskLevel.
type RiskThresholds struct {
	Medium       float64 `json:"medium"         yaml:"medium"`
	High         float64 `json:"high"           yaml:"high"`
	LowerIsRisky bool    `json:"lower_is_risky" yaml:"lower_is_risky"`
}

// Info holds the metadata of a calculator.
type Info struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Tags        []string        `json:"tags,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Version     string          `json:"version,omitempty"`
	URL         string          `json:"url,omitempty"`
	Formula     string          `json:"formula"`
	Fields      []FieldSpec     `json:"fields,omitempty"`
	Examples    []Example       `json:"examples,omitempty"`
	Related     []string        `json:"related,omitempty"`
	Risk        *RiskThresholds `json:"risk,omitempty"`
	MarketRate  string          `json:"market_rate,omitempty"` // rate snapshot key used when rate is omitted
	GuideHTML   string          `json:"-"`
}

// Field returns the field spec with the given ID.
func (i Info) Field(id string) (FieldSpec, bool) {
	for _, f := range i.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Matches reports whether q appears in the calculator's ID, name,
// description or tags (case-insensitive).
func (i Info) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(i.ID, q) ||
		strings.Contains(strings.ToLower(i.Name), q) ||
		strings.Contains(strings.ToLower(i.Description), q) {
		return true
	}
	for _, t := range i.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// Calculator is the interface every catalog calculator implements.
type Calculator interface {
	// Info returns the calculator's metadata.
	Info() Info

	// Validate checks inputs against the shared rules.
	Validate(in models.Inputs) models.ValidationResult

	// Calculate computes the result for already-validated inputs.
	Calculate(ctx context.Context, in models.Inputs) (*models.Output, error)
}

// ErrCalculatorNotFound is returned when an ID is not registered.
type ErrCalculatorNotFound struct {
	ID string
}

func (e *ErrCalculatorNotFound) Error() string {
	return fmt.Sprintf("calculator %q not found", e.ID)
}

// ErrDuplicateCalculator is returned when an ID is registered twice.
type ErrDuplicateCalculator struct {
	ID string
}

func (e *ErrDuplicateCalculator) Error() string {
	return fmt.Sprintf("calculator %q already registered", e.ID)
}

// ErrValidation carries the validation messages of a rejected calculation.
type ErrValidation struct {
	ID     string
	Errors []string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("calculator %q: validation failed: %s", e.ID, strings.Join(e.Errors, ", "))
}

// ErrMissingInput is returned when a formula needs an input that was omitted.
type ErrMissingInput struct {
	Field string
}

func (e *ErrMissingInput) Error() string {
	return fmt.Sprintf("missing required input %q", e.Field)
}

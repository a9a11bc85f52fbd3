package models

import "time"

// RiskLevel classifies a calculation outcome.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Valid reports whether r is one of the three known levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Inputs is the shared input shape of every calculator. Fields are pointers
// so that an omitted field is distinguishable from an explicit zero.
type Inputs struct {
	Value    *float64 `json:"value,omitempty"    yaml:"value,omitempty"`
	Rate     *float64 `json:"rate,omitempty"     yaml:"rate,omitempty"`     // percent, 0-100
	Amount   *float64 `json:"amount,omitempty"   yaml:"amount,omitempty"`
	Quantity *float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// Float returns a pointer to v, for building Inputs literals.
func Float(v float64) *float64 { return &v }

// Get returns the named input ("value", "rate", "amount", "quantity").
func (in Inputs) Get(name string) (float64, bool) {
	var p *float64
	switch name {
	case "value":
		p = in.Value
	case "rate":
		p = in.Rate
	case "amount":
		p = in.Amount
	case "quantity":
		p = in.Quantity
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set assigns the named input. Unknown names are ignored and reported false.
func (in *Inputs) Set(name string, v float64) bool {
	switch name {
	case "value":
		in.Value = Float(v)
	case "rate":
		in.Rate = Float(v)
	case "amount":
		in.Amount = Float(v)
	case "quantity":
		in.Quantity = Float(v)
	default:
		return false
	}
	return true
}

// InputNames lists the input fields in canonical order.
var InputNames = []string{"value", "rate", "amount", "quantity"}

// Results is the primary output of a calculation.
type Results struct {
	Result   float64 `json:"result"`
	Analysis string  `json:"analysis,omitempty"`
}

// Metrics mirrors the result for consumers that read metric blocks.
type Metrics struct {
	Result float64 `json:"result"`
}

// Analysis is the qualitative assessment attached to a result.
type Analysis struct {
	Recommendation string    `json:"recommendation"`
	RiskLevel      RiskLevel `json:"riskLevel"`
}

// ValidationResult is the outcome of input validation. Errors is never nil
// so it always encodes as a JSON array.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Output bundles everything a single calculation produces.
type Output struct {
	CalculatorID string        `json:"calculator_id"`
	Inputs       Inputs        `json:"inputs"`
	Results      Results       `json:"results"`
	Metrics      Metrics       `json:"metrics"`
	Analysis     Analysis      `json:"analysis"`
	Duration     time.Duration `json:"duration_ns"`
	CalculatedAt time.Time     `json:"calculated_at"`
	Cached       bool          `json:"cached"`
}

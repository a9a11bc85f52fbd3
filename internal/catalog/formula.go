package catalog

import (
	"fmt"
	"math"
	"sort"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/pkg/models"
)

// FormulaKind names one of the generic formulas a catalog entry computes with.
type FormulaKind string

const (
	FormulaIdentity       FormulaKind = "identity"
	FormulaProduct        FormulaKind = "product"
	FormulaPercentOf      FormulaKind = "percent_of"
	FormulaCompound       FormulaKind = "compound"
	FormulaSimpleInterest FormulaKind = "simple_interest"
	FormulaRatio          FormulaKind = "ratio"
	FormulaPerUnit        FormulaKind = "per_unit"
	FormulaGrowth         FormulaKind = "growth"
)

// ErrDivisionByZero is returned when a formula's divisor input is zero.
type ErrDivisionByZero struct {
	Field string
}

func (e *ErrDivisionByZero) Error() string {
	return fmt.Sprintf("division by zero: %q must not be 0", e.Field)
}

type formula struct {
	needs    []string
	describe string
	eval     func(v map[string]float64) (float64, error)
}

var formulas = map[FormulaKind]formula{
	FormulaIdentity: {
		needs:    []string{"value"},
		describe: "value",
		eval:     func(v map[string]float64) (float64, error) { return v["value"], nil },
	},
	FormulaProduct: {
		needs:    []string{"value", "quantity"},
		describe: "value × quantity",
		eval: func(v map[string]float64) (float64, error) {
			return v["value"] * v["quantity"], nil
		},
	},
	FormulaPercentOf: {
		needs:    []string{"value", "rate"},
		describe: "value × rate / 100",
		eval: func(v map[string]float64) (float64, error) {
			return v["value"] * v["rate"] / 100, nil
		},
	},
	FormulaCompound: {
		needs:    []string{"amount", "rate", "quantity"},
		describe: "amount × (1 + rate / 100) ^ quantity",
		eval: func(v map[string]float64) (float64, error) {
			return v["amount"] * math.Pow(1+v["rate"]/100, v["quantity"]), nil
		},
	},
	FormulaSimpleInterest: {
		needs:    []string{"amount", "rate", "quantity"},
		describe: "amount × rate / 100 × quantity",
		eval: func(v map[string]float64) (float64, error) {
			return v["amount"] * v["rate"] / 100 * v["quantity"], nil
		},
	},
	FormulaRatio: {
		needs:    []string{"value", "amount"},
		describe: "value / amount × 100",
		eval: func(v map[string]float64) (float64, error) {
			if v["amount"] == 0 {
				return 0, &ErrDivisionByZero{Field: "amount"}
			}
			return v["value"] / v["amount"] * 100, nil
		},
	},
	FormulaPerUnit: {
		needs:    []string{"amount", "quantity"},
		describe: "amount / quantity",
		eval: func(v map[string]float64) (float64, error) {
			if v["quantity"] == 0 {
				return 0, &ErrDivisionByZero{Field: "quantity"}
			}
			return v["amount"] / v["quantity"], nil
		},
	},
	FormulaGrowth: {
		needs:    []string{"value", "amount"},
		describe: "(value - amount) / amount × 100",
		eval: func(v map[string]float64) (float64, error) {
			if v["amount"] == 0 {
				return 0, &ErrDivisionByZero{Field: "amount"}
			}
			return (v["value"] - v["amount"]) / v["amount"] * 100, nil
		},
	},
}

// Known reports whether k is a supported formula kind.
func (k FormulaKind) Known() bool {
	_, ok := formulas[k]
	return ok
}

// Needs returns the inputs the formula reads, in canonical order.
func (k FormulaKind) Needs() []string {
	f, ok := formulas[k]
	if !ok {
		return nil
	}
	return append([]string(nil), f.needs...)
}

// Describe returns a human-readable rendering of the formula.
func (k FormulaKind) Describe() string {
	if f, ok := formulas[k]; ok {
		return f.describe
	}
	return string(k)
}

// Kinds lists every supported formula kind, sorted.
func Kinds() []FormulaKind {
	kinds := make([]FormulaKind, 0, len(formulas))
	for k := range formulas {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Evaluate computes formula k over in. Every input the formula needs must be
// present; a non-finite result is reported as an error.
func Evaluate(k FormulaKind, in models.Inputs) (float64, error) {
	f, ok := formulas[k]
	if !ok {
		return 0, fmt.Errorf("unknown formula kind %q", k)
	}

	vals := make(map[string]float64, len(f.needs))
	for _, name := range f.needs {
		v, ok := in.Get(name)
		if !ok {
			return 0, &calculator.ErrMissingInput{Field: name}
		}
		vals[name] = v
	}

	result, err := f.eval(vals)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("formula %s produced a non-finite result", k)
	}
	return result, nil
}

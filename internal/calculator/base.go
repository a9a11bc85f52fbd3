package calculator

import (
	"time"

	"github.com/seenimoa/calcthis/pkg/models"
)

// BaseCalculator provides the metadata and validation half of Calculator.
// Embed it in concrete calculators and implement Calculate.
type BaseCalculator struct {
	info Info
}

// NewBaseCalculator creates a base calculator from its metadata.
func NewBaseCalculator(info Info) BaseCalculator {
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	return BaseCalculator{info: info}
}

func (b *BaseCalculator) Info() Info { return b.info }

func (b *BaseCalculator) Validate(in models.Inputs) models.ValidationResult {
	return ValidateInputs(in)
}

// Finish wraps a computed result into an Output with derived analysis.
func (b *BaseCalculator) Finish(in models.Inputs, result float64, started time.Time) *models.Output {
	level := DeriveRiskLevel(result, b.info.Risk)
	return &models.Output{
		CalculatorID: b.info.ID,
		Inputs:       in,
		Results: models.Results{
			Result:   result,
			Analysis: Summarize(result, level),
		},
		Metrics: models.Metrics{Result: result},
		Analysis: models.Analysis{
			Recommendation: Recommend(b.info.Name, level),
			RiskLevel:      level,
		},
		Duration:     time.Since(started),
		CalculatedAt: time.Now(),
	}
}

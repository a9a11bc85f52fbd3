package calculator

import (
	"fmt"
	"math"

	"github.com/seenimoa/calcthis/pkg/models"
)

// DeriveRiskLevel maps a result onto a risk level. With no thresholds a
// negative result is High, zero is Medium and anything positive is Low.
func DeriveRiskLevel(result float64, t *RiskThresholds) models.RiskLevel {
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return models.RiskHigh
	}
	if t == nil {
		switch {
		case result < 0:
			return models.RiskHigh
		case result == 0:
			return models.RiskMedium
		default:
			return models.RiskLow
		}
	}
	if t.LowerIsRisky {
		switch {
		case result <= t.High:
			return models.RiskHigh
		case result <= t.Medium:
			return models.RiskMedium
		default:
			return models.RiskLow
		}
	}
	switch {
	case result >= t.High:
		return models.RiskHigh
	case result >= t.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Recommend returns the recommendation text for a risk level.
func Recommend(name string, level models.RiskLevel) string {
	switch level {
	case models.RiskHigh:
		return fmt.Sprintf("%s indicates high risk: review the inputs and consider more conservative assumptions.", name)
	case models.RiskMedium:
		return fmt.Sprintf("%s indicates moderate risk: monitor the outcome and compare alternatives.", name)
	default:
		return fmt.Sprintf("%s indicates low risk: the outcome is within a comfortable range.", name)
	}
}

// Summarize produces the short analysis string stored on Results.
func Summarize(result float64, level models.RiskLevel) string {
	return fmt.Sprintf("Result %.2f (%s risk)", result, level)
}

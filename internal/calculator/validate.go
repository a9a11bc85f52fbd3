package calculator

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/seenimoa/calcthis/pkg/models"
)

// Fixed messages produced by ValidateInputs.
const (
	MsgValueNonNegative = "Value must be non-negative"
	MsgRateRange        = "Rate must be between 0 and 100"
)

// inputRules is the validation view of models.Inputs. Field order is the
// order in which errors are reported.
type inputRules struct {
	Value *float64 `validate:"omitnil,nonneg"`
	Rate  *float64 `validate:"omitnil,percent"`
}

var ruleMessages = map[string]string{
	"Value.nonneg": MsgValueNonNegative,
	"Rate.percent": MsgRateRange,
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nonneg", func(fl validator.FieldLevel) bool {
		f, ok := floatField(fl.Field())
		return ok && !math.IsNaN(f) && f >= 0
	})
	_ = v.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
		f, ok := floatField(fl.Field())
		return ok && !math.IsNaN(f) && f >= 0 && f <= 100
	})
	return v
}

func floatField(v reflect.Value) (float64, bool) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

// ValidateInputs applies the two shared rules: a provided value must be
// non-negative and a provided rate must lie in [0, 100]. Omitted fields
// always pass.
func ValidateInputs(in models.Inputs) models.ValidationResult {
	res := models.ValidationResult{IsValid: true, Errors: []string{}}

	err := inputValidator.Struct(inputRules{Value: in.Value, Rate: in.Rate})
	if err == nil {
		return res
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.IsValid = false
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	for _, fe := range verrs {
		msg, ok := ruleMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid", fe.Field())
		}
		res.Errors = append(res.Errors, msg)
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

// FieldIssue is a per-field finding from QuickValidate.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// QuickValidate checks inputs against the calculator's field specs
// (required, min, max). It is advisory and independent of ValidateInputs.
func QuickValidate(fields []FieldSpec, in models.Inputs) []FieldIssue {
	var issues []FieldIssue
	for _, f := range fields {
		label := f.Label
		if label == "" {
			label = f.ID
		}
		v, ok := in.Get(f.ID)
		if !ok {
			if f.Required {
				issues = append(issues, FieldIssue{Field: f.ID, Message: label + " is required"})
			}
			continue
		}
		if f.Min != nil && v < *f.Min {
			issues = append(issues, FieldIssue{Field: f.ID, Message: fmt.Sprintf("%s must be at least %s", label, formatBound(*f.Min))})
		}
		if f.Max != nil && v > *f.Max {
			issues = append(issues, FieldIssue{Field: f.ID, Message: fmt.Sprintf("%s cannot exceed %s", label, formatBound(*f.Max))})
		}
	}
	return issues
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/pkg/models"
)

// TemplateCalculator is the calculator built from a manifest entry.
type TemplateCalculator struct {
	calculator.BaseCalculator
	formula FormulaKind
}

// Formula returns the formula kind the calculator evaluates.
func (t *TemplateCalculator) Formula() FormulaKind { return t.formula }

// Calculate evaluates the entry's formula over in.
func (t *TemplateCalculator) Calculate(ctx context.Context, in models.Inputs) (*models.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := Evaluate(t.formula, in)
	if err != nil {
		return nil, err
	}
	return t.Finish(in, result, start), nil
}

// Info converts the entry to calculator metadata. Entries without explicit
// fields get one generated field per formula input.
func (e Entry) Info(baseURL string) calculator.Info {
	fields := e.Fields
	if len(fields) == 0 {
		fields = DefaultFields(e.Formula)
	}
	var url string
	if baseURL != "" {
		url = strings.TrimRight(baseURL, "/") + "/" + e.ID
	}
	return calculator.Info{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Category:    e.Category,
		Tags:        e.Tags,
		Icon:        e.Icon,
		Version:     e.Version,
		URL:         url,
		Formula:     string(e.Formula),
		Fields:      fields,
		Examples:    e.Examples,
		Related:     e.Related,
		Risk:        e.Risk,
		MarketRate:  e.MarketRate,
		GuideHTML:   e.Guide,
	}
}

// Calculator builds the entry's calculator.
func (e Entry) Calculator(baseURL string) *TemplateCalculator {
	return &TemplateCalculator{
		BaseCalculator: calculator.NewBaseCalculator(e.Info(baseURL)),
		formula:        e.Formula,
	}
}

// Register adds the entry's calculator to reg, exactly one entry per call.
func (e Entry) Register(reg *calculator.Registry, baseURL string) error {
	return reg.Register(e.Calculator(baseURL))
}

// DefaultFields generates a required field for every input formula k needs.
func DefaultFields(k FormulaKind) []calculator.FieldSpec {
	needs := k.Needs()
	fields := make([]calculator.FieldSpec, 0, len(needs))
	for _, name := range needs {
		f := calculator.FieldSpec{
			ID:       name,
			Label:    strings.ToUpper(name[:1]) + name[1:],
			Type:     "number",
			Required: true,
			Min:      models.Float(0),
		}
		if name == "rate" {
			f.Type = "percent"
			f.Max = models.Float(100)
			f.Unit = "%"
		}
		fields = append(fields, f)
	}
	return fields
}

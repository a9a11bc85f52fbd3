package catalog

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/pkg/models"
)

func TestDefaultManifest(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, m.Calculators)
	assert.Len(t, m.Categories, 8)

	for _, id := range []string{"ad-reach-frequency-calculator", "bitcoin-halving-calculator", "breakeven-point-calculator", "loan-to-value"} {
		found := false
		for _, e := range m.Calculators {
			if e.ID == id {
				found = true
				break
			}
		}
		assert.True(t, found, "catalog should contain %s", id)
	}
}

func TestDefaultManifestExamples(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	for _, e := range m.Calculators {
		for _, ex := range e.Examples {
			if ex.Expected == nil {
				continue
			}
			got, err := Evaluate(e.Formula, ex.Inputs)
			require.NoError(t, err, "%s / %s", e.ID, ex.Name)

			tol := ex.Tolerance
			if tol == 0 {
				tol = 0.01
			}
			assert.InDelta(t, *ex.Expected, got, tol, "%s / %s", e.ID, ex.Name)
		}
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		kind FormulaKind
		in   models.Inputs
		want float64
	}{
		{FormulaIdentity, models.Inputs{Value: models.Float(7)}, 7},
		{FormulaProduct, models.Inputs{Value: models.Float(3), Quantity: models.Float(4)}, 12},
		{FormulaPercentOf, models.Inputs{Value: models.Float(200), Rate: models.Float(15)}, 30},
		{FormulaCompound, models.Inputs{Amount: models.Float(1000), Rate: models.Float(10), Quantity: models.Float(2)}, 1210},
		{FormulaSimpleInterest, models.Inputs{Amount: models.Float(1000), Rate: models.Float(10), Quantity: models.Float(2)}, 200},
		{FormulaRatio, models.Inputs{Value: models.Float(1), Amount: models.Float(4)}, 25},
		{FormulaPerUnit, models.Inputs{Amount: models.Float(9), Quantity: models.Float(3)}, 3},
		{FormulaGrowth, models.Inputs{Value: models.Float(90), Amount: models.Float(100)}, -10},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := Evaluate(tt.kind, tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(FormulaProduct, models.Inputs{Value: models.Float(3)})
	var missing *calculator.ErrMissingInput
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "quantity", missing.Field)

	_, err = Evaluate(FormulaRatio, models.Inputs{Value: models.Float(1), Amount: models.Float(0)})
	var div *ErrDivisionByZero
	require.True(t, errors.As(err, &div))
	assert.Equal(t, "amount", div.Field)

	_, err = Evaluate(FormulaCompound, models.Inputs{Amount: models.Float(math.MaxFloat64), Rate: models.Float(100), Quantity: models.Float(1e6)})
	assert.Error(t, err, "overflow should be reported")

	_, err = Evaluate("median", models.Inputs{})
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	assert.Len(t, kinds, 8)
	for _, k := range kinds {
		assert.True(t, k.Known())
		assert.NotEmpty(t, k.Describe())
		assert.NotEmpty(t, k.Needs())
	}
	assert.False(t, FormulaKind("median").Known())
}

func TestLoadRejectsInvalidManifest(t *testing.T) {
	src := `
categories:
  - id: finance
    name: Finance
calculators:
  - id: a
    name: A
    category: finance
    formula: product
    examples:
      - name: missing quantity
        inputs: {value: 1}
  - id: a
    name: Duplicate
    category: finance
    formula: identity
  - id: b
    category: nowhere
    formula: median
  - id: c
    name: C
    category: finance
    formula: ratio
    fields:
      - {id: weight}
    related: [zzz]
    risk: {medium: 10, high: 5}
`
	_, err := Load(strings.NewReader(src))
	var invalid *ErrInvalidManifest
	require.True(t, errors.As(err, &invalid), "got %v", err)

	joined := strings.Join(invalid.Problems, "\n")
	for _, want := range []string{
		`example "missing quantity" is missing input "quantity"`,
		`duplicate calculator id "a"`,
		`b: name is required`,
		`unknown category "nowhere"`,
		`unknown formula "median"`,
		`unknown field "weight"`,
		`related calculator "zzz"`,
		`risk thresholds are inverted`,
	} {
		assert.Contains(t, joined, want)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader("calculators:\n  - id: a\n    nme: typo\n"))
	assert.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	var invalid *ErrInvalidManifest
	assert.True(t, errors.As(err, &invalid))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
calculators:
  - id: doubler
    name: Doubler
    category: math
    formula: product
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, m.Calculators, 1)
	assert.Equal(t, FormulaProduct, m.Calculators[0].Formula)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	health := m.Filter([]string{" Health "})
	require.NotEmpty(t, health)
	for _, e := range health {
		assert.Equal(t, "health", e.Category)
	}
	assert.Len(t, m.Filter(nil), len(m.Calculators))

	c, ok := m.Category("finance")
	assert.True(t, ok)
	assert.Equal(t, "Finance", c.Name)
}

func TestEntryRegisterAddsOneEntry(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	reg := calculator.NewRegistry()
	for i, e := range m.Calculators {
		require.NoError(t, e.Register(reg, m.BaseURL))
		assert.Equal(t, i+1, reg.Len())
	}
	err = m.Calculators[0].Register(reg, m.BaseURL)
	var dup *calculator.ErrDuplicateCalculator
	assert.True(t, errors.As(err, &dup))
}

func TestTemplateCalculator(t *testing.T) {
	e := Entry{
		ID:       "ltv",
		Name:     "LTV",
		Category: "finance",
		Formula:  FormulaRatio,
		Risk:     &calculator.RiskThresholds{Medium: 80, High: 95},
	}
	c := e.Calculator("https://example.test/calculators/")

	info := c.Info()
	assert.Equal(t, "https://example.test/calculators/ltv", info.URL)
	assert.Equal(t, "1.0.0", info.Version)
	require.Len(t, info.Fields, 2, "fields are generated from the formula")
	assert.Equal(t, "value", info.Fields[0].ID)
	assert.Equal(t, FormulaRatio, c.Formula())

	out, err := c.Calculate(context.Background(), models.Inputs{Value: models.Float(285), Amount: models.Float(300)})
	require.NoError(t, err)
	assert.InDelta(t, 95, out.Results.Result, 1e-9)
	assert.Equal(t, out.Results.Result, out.Metrics.Result)
	assert.Equal(t, models.RiskHigh, out.Analysis.RiskLevel)
	assert.NotEmpty(t, out.Analysis.Recommendation)
}

func TestCatalogValidationProperties(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	for _, e := range m.Calculators {
		c := e.Calculator("")
		neg := c.Validate(models.Inputs{Value: models.Float(-5)})
		assert.False(t, neg.IsValid, e.ID)
		assert.Equal(t, []string{calculator.MsgValueNonNegative}, neg.Errors, e.ID)

		rate := c.Validate(models.Inputs{Rate: models.Float(150)})
		assert.False(t, rate.IsValid, e.ID)
		assert.Equal(t, []string{calculator.MsgRateRange}, rate.Errors, e.ID)

		empty := c.Validate(models.Inputs{})
		assert.True(t, empty.IsValid, e.ID)
		assert.Empty(t, empty.Errors, e.ID)
	}
}

func TestDefaultFields(t *testing.T) {
	fields := DefaultFields(FormulaPercentOf)
	require.Len(t, fields, 2)
	assert.Equal(t, "Value", fields[0].Label)
	assert.Equal(t, "percent", fields[1].Type)
	require.NotNil(t, fields[1].Max)
	assert.Equal(t, 100.0, *fields[1].Max)
}

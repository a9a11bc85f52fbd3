package help

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/catalog"
	"github.com/seenimoa/calcthis/pkg/models"
)

func ltvInfo() calculator.Info {
	return calculator.Info{
		ID:          "loan-to-value",
		Name:        "Loan-to-Value Ratio Calculator",
		Description: "Loan balance as a percentage of the appraised property value.",
		Category:    "finance",
		Formula:     string(catalog.FormulaRatio),
		Fields: []calculator.FieldSpec{
			{ID: "value", Label: "Loan Balance", Type: "currency", Required: true, Min: models.Float(0), Unit: "$"},
			{ID: "amount", Label: "Appraised Value", Type: "currency", Required: true, Min: models.Float(1), Max: models.Float(1e7), Unit: "$"},
		},
		Examples: []calculator.Example{
			{Name: "Conforming LTV", Inputs: models.Inputs{Value: models.Float(240000), Amount: models.Float(300000)}, Expected: models.Float(80)},
		},
		Related:   []string{"fha-loan"},
		Risk:      &calculator.RiskThresholds{Medium: 80, High: 95},
		GuideHTML: "<p>Lenders price risk by <strong>LTV</strong>.</p><ul><li>Above 80% needs insurance.</li></ul><script>alert(1)</script>",
	}
}

func TestUsageGuide(t *testing.T) {
	g := UsageGuide(ltvInfo())

	assert.Equal(t, "loan-to-value_guide", g.ID)
	assert.Equal(t, "How to Use Loan-to-Value Ratio Calculator", g.Title)
	assert.Equal(t, []string{"finance", "usage", "guide"}, g.Tags)
	assert.Equal(t, Beginner, g.Difficulty)
	assert.GreaterOrEqual(t, g.EstimatedReadTime, 1)

	for _, want := range []string{
		"Loan balance as a percentage",
		"Lenders price risk by LTV.",
		"- Above 80% needs insurance.",
		"**Appraised Value**",
		"1 to 10000000 $",
		"`value / amount × 100`",
		"Conforming LTV: value=240000, amount=300000 gives 80",
		"medium at 80, high at 95",
		"fha-loan",
	} {
		assert.Contains(t, g.Content, want)
	}
	assert.NotContains(t, g.Content, "alert")
	assert.NotContains(t, g.Content, "<strong>")
}

func TestUsageGuideDifficulty(t *testing.T) {
	info := ltvInfo()
	info.Formula = string(catalog.FormulaCompound)
	assert.Equal(t, Intermediate, UsageGuide(info).Difficulty)
}

func TestContextualHelp(t *testing.T) {
	info := ltvInfo()

	h, err := ContextualHelp(info, "amount")
	require.NoError(t, err)
	assert.Equal(t, "Appraised Value", h.Title)
	assert.Equal(t, []string{"300000"}, h.Examples)
	assert.Contains(t, h.Tips, "Accepted range: 1 to 10000000 $")
	assert.Contains(t, h.Tips, "This field is required")
	assert.Contains(t, h.Tips, "Do not include currency symbols or thousands separators")

	_, err = ContextualHelp(info, "rate")
	var nf *ErrFieldNotFound
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "rate", nf.Field)
}

func TestContextualHelpMarketRate(t *testing.T) {
	info := calculator.Info{
		ID:         "refi",
		MarketRate: "conventional30",
		Fields:     catalog.DefaultFields(catalog.FormulaSimpleInterest),
	}
	h, err := ContextualHelp(info, "rate")
	require.NoError(t, err)
	assert.Contains(t, h.Tips, "Leave empty to use the current market benchmark")
	assert.NotEmpty(t, h.Description)
}

func TestAllContextualHelp(t *testing.T) {
	all := AllContextualHelp(ltvInfo())
	assert.Len(t, all, 2)
	assert.Contains(t, all, "value")
	assert.Contains(t, all, "amount")
}

func TestNewTutorial(t *testing.T) {
	tut := NewTutorial(ltvInfo())
	require.Len(t, tut.Steps, 5)
	assert.Equal(t, "welcome", tut.Steps[0].ID)
	assert.Equal(t, "value", tut.Steps[1].Target)
	assert.Equal(t, "240000", tut.Steps[1].Value)
	assert.Equal(t, "completion", tut.Steps[len(tut.Steps)-1].ID)
	assert.Equal(t, 6, tut.Duration)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"<h2>Title</h2><p>Body   text</p>", "Title\nBody text"},
		{"<span>inline <b>only</b></span>", "inline only"},
	}
	for _, tt := range tests {
		got := HTMLToText(tt.in)
		if got != tt.want {
			t.Errorf("HTMLToText(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGuideForWholeCatalog(t *testing.T) {
	m, err := catalog.Default()
	require.NoError(t, err)
	for _, e := range m.Calculators {
		g := UsageGuide(e.Info(m.BaseURL))
		assert.True(t, strings.HasPrefix(g.Content, "# "+e.Name), e.ID)
	}
}

// Package help generates usage guides, per-field contextual help and
// step-by-step tutorials from calculator metadata.
package help

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/catalog"
	"github.com/seenimoa/calcthis/pkg/models"
)

// Difficulty rates how demanding a guide is.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

const wordsPerMinute = 200

// Guide is the usage guide for one calculator.
type Guide struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Category          string     `json:"category"`
	Tags              []string   `json:"tags"`
	Difficulty        Difficulty `json:"difficulty"`
	EstimatedReadTime int        `json:"estimated_read_time"` // minutes
	Content           string     `json:"content"`
}

// FieldHelp is contextual help for one input field.
type FieldHelp struct {
	FieldID     string   `json:"field_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	Tips        []string `json:"tips,omitempty"`
}

// TutorialStep is one step of an interactive tutorial.
type TutorialStep struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Target  string `json:"target,omitempty"` // input field to fill
	Value   string `json:"value,omitempty"`  // suggested value
}

// Tutorial walks a user through one calculation.
type Tutorial struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Difficulty  Difficulty     `json:"difficulty"`
	Duration    int            `json:"duration"` // minutes
	Tags        []string       `json:"tags"`
	Steps       []TutorialStep `json:"steps"`
}

// ErrFieldNotFound is returned when contextual help is requested for a field
// the calculator does not have.
type ErrFieldNotFound struct {
	Calculator string
	Field      string
}

func (e *ErrFieldNotFound) Error() string {
	return fmt.Sprintf("calculator %q has no field %q", e.Calculator, e.Field)
}

var commonTips = []string{
	"Double-check all input values",
	"Use current market rates when applicable",
	"Consider consulting with a professional for complex scenarios",
}

var commonMistakes = []string{
	"Entering percentages as decimals (use 5, not 0.05 for 5%)",
	"Forgetting to account for additional fees or costs",
	"Using outdated rates or information",
}

// UsageGuide builds the usage guide for a calculator.
func UsageGuide(info calculator.Info) Guide {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Usage Guide\n\n", info.Name)
	b.WriteString("## Overview\n")
	if info.Description != "" {
		b.WriteString(info.Description)
	} else {
		fmt.Fprintf(&b, "The %s helps you compute a result quickly and accurately.", info.Name)
	}
	b.WriteString("\n\n")

	if text := HTMLToText(info.GuideHTML); text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	b.WriteString("## Step 1: Enter Your Information\n")
	for _, f := range info.Fields {
		desc := f.Description
		if desc == "" {
			desc = "Enter the appropriate value"
		}
		fmt.Fprintf(&b, "- **%s**: %s", label(f), desc)
		if rng := rangeText(f); rng != "" {
			fmt.Fprintf(&b, " (%s)", rng)
		}
		b.WriteString("\n")
		if f.Placeholder != "" {
			fmt.Fprintf(&b, "  - Example: %s\n", f.Placeholder)
		}
	}

	b.WriteString("\n## Step 2: Review Results\n")
	if info.Formula != "" {
		fmt.Fprintf(&b, "The result is computed as `%s`.\n", catalog.FormulaKind(info.Formula).Describe())
	}
	for _, ex := range info.Examples {
		fmt.Fprintf(&b, "- %s: %s", ex.Name, inputsText(ex))
		if ex.Expected != nil {
			fmt.Fprintf(&b, " gives %s", strconv.FormatFloat(*ex.Expected, 'f', -1, 64))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Step 3: Interpret Your Results\n")
	b.WriteString(interpretation(info))
	b.WriteString("\n\n## Tips for Accuracy\n")
	for _, t := range commonTips {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString("\n## Common Mistakes to Avoid\n")
	for _, m := range commonMistakes {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	if len(info.Related) > 0 {
		fmt.Fprintf(&b, "\n## Related Calculators\n%s\n", strings.Join(info.Related, ", "))
	}

	content := b.String()
	return Guide{
		ID:                info.ID + "_guide",
		Title:             "How to Use " + info.Name,
		Category:          info.Category,
		Tags:              []string{info.Category, "usage", "guide"},
		Difficulty:        difficulty(info),
		EstimatedReadTime: readTime(content),
		Content:           content,
	}
}

// ContextualHelp returns help for one field of a calculator.
func ContextualHelp(info calculator.Info, fieldID string) (FieldHelp, error) {
	f, ok := info.Field(fieldID)
	if !ok {
		return FieldHelp{}, &ErrFieldNotFound{Calculator: info.ID, Field: fieldID}
	}
	return fieldHelp(info, f), nil
}

// AllContextualHelp returns help for every field of a calculator, keyed by
// field ID.
func AllContextualHelp(info calculator.Info) map[string]FieldHelp {
	out := make(map[string]FieldHelp, len(info.Fields))
	for _, f := range info.Fields {
		out[f.ID] = fieldHelp(info, f)
	}
	return out
}

func fieldHelp(info calculator.Info, f calculator.FieldSpec) FieldHelp {
	h := FieldHelp{
		FieldID:     f.ID,
		Title:       label(f),
		Description: f.Description,
	}
	if h.Description == "" {
		h.Description = defaultDescription(f)
	}

	if f.Placeholder != "" {
		h.Examples = append(h.Examples, f.Placeholder)
	}
	for _, ex := range info.Examples {
		if v, ok := ex.Inputs.Get(f.ID); ok {
			h.Examples = append(h.Examples, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}

	if rng := rangeText(f); rng != "" {
		h.Tips = append(h.Tips, "Accepted range: "+rng)
	}
	if f.Required {
		h.Tips = append(h.Tips, "This field is required")
	}
	switch {
	case f.ID == "rate" || f.Type == "percent":
		h.Tips = append(h.Tips, "Enter as a percentage (e.g., 5 for 5%)")
		if info.MarketRate != "" {
			h.Tips = append(h.Tips, "Leave empty to use the current market benchmark")
		}
	case f.Type == "currency":
		h.Tips = append(h.Tips, "Do not include currency symbols or thousands separators")
	}
	return h
}

// NewTutorial builds an interactive tutorial with one step per input field.
func NewTutorial(info calculator.Info) Tutorial {
	steps := []TutorialStep{{
		ID:      "welcome",
		Title:   "Welcome",
		Content: fmt.Sprintf("Welcome to the %s tutorial! We'll walk you through using this calculator step by step.", info.Name),
	}}

	var sample map[string]string
	if len(info.Examples) > 0 {
		sample = make(map[string]string)
		for _, name := range models.InputNames {
			if v, ok := info.Examples[0].Inputs.Get(name); ok {
				sample[name] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	for i, f := range info.Fields {
		value := sample[f.ID]
		if value == "" {
			value = f.Placeholder
		}
		steps = append(steps, TutorialStep{
			ID:      fmt.Sprintf("input_%d", i),
			Title:   "Enter " + label(f),
			Content: strings.TrimSpace(fmt.Sprintf("Now let's enter the %s. %s", label(f), f.Description)),
			Target:  f.ID,
			Value:   value,
		})
	}
	steps = append(steps,
		TutorialStep{ID: "review_results", Title: "Review Results", Content: "Review the result and its risk level to understand what it means."},
		TutorialStep{ID: "completion", Title: "Tutorial Complete", Content: fmt.Sprintf("You've completed the %s tutorial.", info.Name)},
	)

	return Tutorial{
		ID:          info.ID + "_tutorial",
		Title:       "Interactive " + info.Name + " Tutorial",
		Description: fmt.Sprintf("Learn how to use the %s with this step-by-step interactive guide.", info.Name),
		Difficulty:  Beginner,
		Duration:    2 + len(info.Fields)*2,
		Tags:        []string{info.Category, info.ID, "interactive"},
		Steps:       steps,
	}
}

// HTMLToText reduces guide HTML to plain text, one line per block element.
func HTMLToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text == "" {
			return
		}
		if goquery.NodeName(sel) == "li" {
			text = "- " + text
		}
		lines = append(lines, text)
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " ")
	}
	return strings.Join(lines, "\n")
}

func label(f calculator.FieldSpec) string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

func defaultDescription(f calculator.FieldSpec) string {
	switch f.ID {
	case "amount":
		return "Enter the principal amount or initial value for the calculation."
	case "rate":
		return "Enter the rate as a percentage."
	case "quantity":
		return "Enter the count, period length or multiplier."
	default:
		return "Enter the value for the calculation."
	}
}

func rangeText(f calculator.FieldSpec) string {
	fmtf := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	unit := ""
	if f.Unit != "" {
		unit = " " + f.Unit
	}
	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("%s to %s%s", fmtf(*f.Min), fmtf(*f.Max), unit)
	case f.Min != nil:
		return fmt.Sprintf("at least %s%s", fmtf(*f.Min), unit)
	case f.Max != nil:
		return fmt.Sprintf("at most %s%s", fmtf(*f.Max), unit)
	}
	return ""
}

func inputsText(ex calculator.Example) string {
	var parts []string
	for _, name := range models.InputNames {
		if v, ok := ex.Inputs.Get(name); ok {
			parts = append(parts, fmt.Sprintf("%s=%s", name, strconv.FormatFloat(v, 'f', -1, 64)))
		}
	}
	return strings.Join(parts, ", ")
}

func interpretation(info calculator.Info) string {
	if info.Risk != nil {
		dir := "higher"
		if info.Risk.LowerIsRisky {
			dir = "lower"
		}
		return fmt.Sprintf("Results are rated Low, Medium or High risk; %s values are riskier (medium at %s, high at %s).",
			dir, strconv.FormatFloat(info.Risk.Medium, 'f', -1, 64), strconv.FormatFloat(info.Risk.High, 'f', -1, 64))
	}
	if strings.EqualFold(info.Category, "finance") {
		return "Review the calculated values to understand the financial impact of your scenario. Consider how changes to inputs affect the results."
	}
	return "Analyze the results in the context of your specific situation and goals."
}

func difficulty(info calculator.Info) Difficulty {
	switch catalog.FormulaKind(info.Formula) {
	case catalog.FormulaCompound, catalog.FormulaGrowth:
		return Intermediate
	}
	if len(info.Fields) > 3 {
		return Advanced
	}
	return Beginner
}

func readTime(content string) int {
	words := len(strings.Fields(content))
	return int(math.Max(1, math.Ceil(float64(words)/wordsPerMinute)))
}

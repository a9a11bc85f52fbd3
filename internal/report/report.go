// Package report renders QA run summaries as HTML or plain text, with
// inline SVG charts and no external assets.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/seenimoa/calcthis/internal/qa"
	"github.com/seenimoa/calcthis/pkg/utils"
)

// Format specifies the output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// ParseFormat accepts "html" or "text" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatHTML:
		return FormatHTML, nil
	case FormatText, "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q (want html or text)", s)
}

// Config controls report generation.
type Config struct {
	Format       Format
	Title        string
	FailuresOnly bool // list only calculators that did not pass
	ChartCfg     ChartConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:   FormatHTML,
		Title:    "Calculator Quality Report",
		ChartCfg: DefaultChartConfig(),
	}
}

// Data is the template model passed to the HTML template.
type Data struct {
	Title       string
	RunID       string
	GeneratedAt string
	Elapsed     string

	Total        int
	Passed       int
	Warnings     int
	Failed       int
	AverageScore string
	Best         string
	Worst        string

	ScoreGauge    template.HTML
	CategoryChart template.HTML

	Rows []Row
}

// Row is one calculator in the results table.
type Row struct {
	ID          string
	Name        string
	Category    string
	Status      string
	StatusClass string
	Score       string
	Duration    string
	Tests       []TestRow
	Issues      []IssueRow
}

// TestRow is a single test kind's outcome.
type TestRow struct {
	Kind   string
	Status string
	Score  string
}

// IssueRow is a failed check.
type IssueRow struct {
	Test     string
	Name     string
	Severity string
	Message  string
}

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// Generate renders sum in cfg.Format.
func Generate(sum *qa.Summary, cfg Config) (string, error) {
	if cfg.Format == FormatText {
		return GenerateText(sum, cfg)
	}
	return GenerateHTML(sum, cfg)
}

// GenerateHTML renders a self-contained HTML report.
func GenerateHTML(sum *qa.Summary, cfg Config) (string, error) {
	if sum == nil {
		return "", errors.New("summary is nil")
	}
	data := buildData(sum, cfg)

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText renders a terminal-friendly report.
func GenerateText(sum *qa.Summary, cfg Config) (string, error) {
	if sum == nil {
		return "", errors.New("summary is nil")
	}
	return renderText(buildData(sum, cfg)), nil
}

func buildData(sum *qa.Summary, cfg Config) Data {
	if cfg.Title == "" {
		cfg.Title = DefaultConfig().Title
	}
	if cfg.ChartCfg.Width == 0 {
		cfg.ChartCfg = DefaultChartConfig()
	}

	data := Data{
		Title:        cfg.Title,
		RunID:        sum.RunID,
		GeneratedAt:  utils.FormatDateTime(sum.FinishedAt),
		Elapsed:      utils.FormatDuration(sum.FinishedAt.Sub(sum.StartedAt)),
		Total:        sum.Total,
		Passed:       sum.Passed,
		Warnings:     sum.Warnings,
		Failed:       sum.Failed,
		AverageScore: fmt.Sprintf("%.1f", sum.AverageScore),
		Best:         sum.Best,
		Worst:        sum.Worst,
		ScoreGauge:   template.HTML(GaugeChart(sum.AverageScore, "Average score", 200)),
	}

	chartCfg := cfg.ChartCfg
	chartCfg.Title = "Average score by category"
	data.CategoryChart = template.HTML(HorizontalBarChart(categoryBars(sum.Reports), chartCfg))

	for _, rep := range sum.Reports {
		if cfg.FailuresOnly && rep.Status == qa.StatusPassed {
			continue
		}
		data.Rows = append(data.Rows, buildRow(rep))
	}
	return data
}

func buildRow(rep qa.Report) Row {
	row := Row{
		ID:          rep.CalculatorID,
		Name:        rep.Name,
		Category:    rep.Category,
		Status:      strings.ToUpper(string(rep.Status)),
		StatusClass: string(rep.Status),
		Score:       fmt.Sprintf("%.1f", rep.Score),
		Duration:    utils.FormatDuration(rep.Duration),
	}
	for _, tr := range rep.Tests {
		row.Tests = append(row.Tests, TestRow{
			Kind:   tr.Kind,
			Status: string(tr.Status),
			Score:  fmt.Sprintf("%.0f", tr.Score),
		})
		for _, d := range tr.Details {
			if d.Status == qa.StatusPassed {
				continue
			}
			row.Issues = append(row.Issues, IssueRow{
				Test:     tr.Kind,
				Name:     d.Name,
				Severity: string(d.Severity),
				Message:  d.Message,
			})
		}
	}
	return row
}

// categoryBars averages report scores per category, sorted by category.
func categoryBars(reports []qa.Report) []BarItem {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range reports {
		sums[r.Category] += r.Score
		counts[r.Category]++
	}
	items := make([]BarItem, 0, len(sums))
	for cat, total := range sums {
		avg := total / float64(counts[cat])
		items = append(items, BarItem{Label: cat, Value: avg, Color: scoreColor(avg)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func renderText(d Data) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	fmt.Fprintf(&sb, "  %s\n", d.Title)
	fmt.Fprintf(&sb, "  Run: %s | Generated: %s | Took: %s\n", d.RunID, d.GeneratedAt, d.Elapsed)
	sb.WriteString(line + "\n\n")

	fmt.Fprintf(&sb, "  Calculators: %d | Passed: %d | Warnings: %d | Failed: %d\n",
		d.Total, d.Passed, d.Warnings, d.Failed)
	fmt.Fprintf(&sb, "  Average score: %s\n", d.AverageScore)
	if d.Best != "" {
		fmt.Fprintf(&sb, "  Best: %s | Worst: %s\n", d.Best, d.Worst)
	}
	sb.WriteString(thinLine + "\n")

	for _, r := range d.Rows {
		fmt.Fprintf(&sb, "  %-8s %6s  %-32s %s\n", r.Status, r.Score, r.ID, r.Duration)
		for _, is := range r.Issues {
			fmt.Fprintf(&sb, "      [%s/%s] %s: %s\n", is.Test, is.Severity, is.Name, is.Message)
		}
	}

	sb.WriteString(line + "\n")
	return sb.String()
}

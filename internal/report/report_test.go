package report

import (
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/calcthis/internal/qa"
)

func sampleSummary() *qa.Summary {
	start := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	return &qa.Summary{
		RunID:        "run-1",
		StartedAt:    start,
		FinishedAt:   start.Add(1500 * time.Millisecond),
		Total:        2,
		Passed:       1,
		Failed:       1,
		AverageScore: 66.5,
		Best:         "roi-calculator",
		Worst:        "broken-<calc>",
		Reports: []qa.Report{
			{
				CalculatorID: "roi-calculator",
				Name:         "ROI Calculator",
				Category:     "finance",
				Status:       qa.StatusPassed,
				Score:        100,
				Duration:     2 * time.Millisecond,
				Tests: []qa.TestResult{
					{Kind: qa.TestAccuracy, Status: qa.StatusPassed, Score: 100},
				},
			},
			{
				CalculatorID: "broken-<calc>",
				Name:         "Broken",
				Category:     "math",
				Status:       qa.StatusFailed,
				Score:        33,
				Duration:     time.Millisecond,
				Tests: []qa.TestResult{
					{Kind: qa.TestAccuracy, Status: qa.StatusFailed, Score: 0, Details: []qa.Detail{
						{Name: "example 1", Status: qa.StatusFailed, Severity: qa.SeverityCritical, Message: "expected 2, got 3"},
						{Name: "example 2", Status: qa.StatusPassed, Severity: qa.SeverityHigh},
					}},
				},
			},
		},
	}
}

func TestGenerateHTML(t *testing.T) {
	out, err := GenerateHTML(sampleSummary(), DefaultConfig())
	if err != nil {
		t.Fatalf("GenerateHTML() error: %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Calculator Quality Report",
		"run-1",
		"ROI Calculator",
		"<svg",
		"Average score by category",
		"[accuracy/critical] example 1: expected 2, got 3",
		"broken-&lt;calc&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(out, "example 2") {
		t.Error("passed details should not be listed as issues")
	}
	if strings.Contains(out, "broken-<calc>") {
		t.Error("calculator IDs must be escaped")
	}
}

func TestGenerateTextFailuresOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = FormatText
	cfg.FailuresOnly = true

	out, err := Generate(sampleSummary(), cfg)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(out, "Passed: 1 | Warnings: 0 | Failed: 1") {
		t.Errorf("missing counts line:\n%s", out)
	}
	if !strings.Contains(out, "Took: 1.5s") {
		t.Errorf("missing elapsed time:\n%s", out)
	}
	if strings.Contains(out, "roi-calculator  ") {
		t.Error("passing calculator listed with FailuresOnly")
	}
	if !strings.Contains(out, "FAILED") {
		t.Error("failing calculator not listed")
	}
}

func TestGenerateNil(t *testing.T) {
	if _, err := GenerateHTML(nil, DefaultConfig()); err == nil {
		t.Error("expected error for nil summary")
	}
	if _, err := GenerateText(nil, DefaultConfig()); err == nil {
		t.Error("expected error for nil summary")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"html", FormatHTML, false},
		{"HTML", FormatHTML, false},
		{"text", FormatText, false},
		{"", FormatText, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCategoryBars(t *testing.T) {
	items := categoryBars([]qa.Report{
		{Category: "math", Score: 100},
		{Category: "finance", Score: 90},
		{Category: "math", Score: 50},
	})
	if len(items) != 2 {
		t.Fatalf("got %d bars, want 2", len(items))
	}
	if items[0].Label != "finance" || items[0].Value != 90 || items[0].Color != "#ff9800" {
		t.Errorf("finance bar = %+v", items[0])
	}
	if items[1].Label != "math" || items[1].Value != 75 || items[1].Color != "#ef5350" {
		t.Errorf("math bar = %+v", items[1])
	}
}

func TestCharts(t *testing.T) {
	if svg := HorizontalBarChart(nil, ChartConfig{}); !strings.Contains(svg, "No data") {
		t.Error("empty bar chart should render placeholder")
	}
	svg := HorizontalBarChart([]BarItem{{Label: "a&b", Value: 10}}, ChartConfig{Title: "T"})
	if !strings.Contains(svg, "a&amp;b") || !strings.Contains(svg, ">T<") {
		t.Errorf("bar chart = %s", svg)
	}

	gauge := GaugeChart(150, "Score", 0)
	if !strings.Contains(gauge, ">100<") {
		t.Error("gauge value should clamp to 100")
	}
	if !strings.Contains(gauge, "#4caf50") {
		t.Error("high score should be green")
	}
}

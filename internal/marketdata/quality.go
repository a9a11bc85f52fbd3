package marketdata

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/seenimoa/calcthis/pkg/models"
)

// Severity of a failed quality rule.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RuleResult is the outcome of one rule.
type RuleResult struct {
	Valid        bool           `json:"valid"`
	Message      string         `json:"message"`
	Details      map[string]any `json:"details,omitempty"`
	SuggestedFix string         `json:"suggested_fix,omitempty"`
}

// Rule is a data-quality check over a snapshot.
type Rule struct {
	ID          string
	Name        string
	Description string
	Severity    Severity
	Check       func(s *models.RateSnapshot, now time.Time) RuleResult
}

// RuleOutcome pairs a rule with its result in a report.
type RuleOutcome struct {
	RuleID   string     `json:"rule_id"`
	RuleName string     `json:"rule_name"`
	Severity Severity   `json:"severity"`
	Result   RuleResult `json:"result"`
}

// QualityReport scores one snapshot against the checker's rules.
type QualityReport struct {
	SourceID        string        `json:"source_id"`
	Timestamp       time.Time     `json:"timestamp"`
	OverallScore    int           `json:"overall_score"` // 0-100
	TotalRules      int           `json:"total_rules"`
	PassedRules     int           `json:"passed_rules"`
	FailedRules     int           `json:"failed_rules"`
	Warnings        int           `json:"warnings"`
	Errors          int           `json:"errors"`
	Results         []RuleOutcome `json:"results"`
	Recommendations []string      `json:"recommendations"`
}

// Checker runs quality rules over rate snapshots.
type Checker struct {
	mu    sync.RWMutex
	rules []Rule
	now   func() time.Time
}

// NewChecker creates a checker with the default mortgage-rate rules.
// maxAgeDays bounds the freshness rule; values below 1 use 7.
func NewChecker(maxAgeDays int) *Checker {
	return &Checker{
		rules: DefaultRules(maxAgeDays),
		now:   time.Now,
	}
}

// DefaultRules returns the range, consistency and freshness rules.
func DefaultRules(maxAgeDays int) []Rule {
	if maxAgeDays < 1 {
		maxAgeDays = 7
	}
	return []Rule{
		{
			ID:          "mortgage-rates-range",
			Name:        "Rate Range Check",
			Description: "Mortgage rates should be within reasonable range",
			Severity:    SeverityError,
			Check: func(s *models.RateSnapshot, _ time.Time) RuleResult {
				var invalid []string
				for _, k := range MortgageKeys {
					v, ok := s.Rate(k)
					if !ok || math.IsNaN(v) || v < 1 || v > 20 {
						invalid = append(invalid, k)
					}
				}
				res := RuleResult{
					Valid:        len(invalid) == 0,
					Message:      "All rates within valid range",
					Details:      map[string]any{"invalid_rates": invalid},
					SuggestedFix: "Check data source for anomalies or update validation range",
				}
				if !res.Valid {
					res.Message = fmt.Sprintf("%d rates are outside valid range (1-20%%)", len(invalid))
				}
				return res
			},
		},
		{
			ID:          "mortgage-rates-consistency",
			Name:        "Rate Consistency Check",
			Description: "15-year rates should typically be lower than 30-year rates",
			Severity:    SeverityWarning,
			Check: func(s *models.RateSnapshot, _ time.Time) RuleResult {
				r15, ok15 := s.Rate(Conventional15)
				r30, ok30 := s.Rate(Conventional30)
				res := RuleResult{
					Valid:        ok15 && ok30 && r15 <= r30,
					Message:      "Rate structure is consistent",
					SuggestedFix: "Verify data source accuracy - inverted yield curve may be temporary",
				}
				switch {
				case !ok15 || !ok30:
					res.Message = "15-year or 30-year rate is missing"
				case !res.Valid:
					res.Message = "15-year rate is higher than 30-year rate"
					res.Details = map[string]any{
						"conventional15": r15,
						"conventional30": r30,
						"difference":     r15 - r30,
					}
				}
				return res
			},
		},
		{
			ID:          "mortgage-rates-freshness",
			Name:        "Data Freshness Check",
			Description: "Data should be updated within expected timeframe",
			Severity:    SeverityWarning,
			Check: func(s *models.RateSnapshot, now time.Time) RuleResult {
				if s.LastUpdated.IsZero() {
					return RuleResult{
						Message:      "Data has no update timestamp",
						SuggestedFix: "Update data source or check update schedule",
					}
				}
				days := now.Sub(s.LastUpdated).Hours() / 24
				res := RuleResult{
					Valid:        days <= float64(maxAgeDays),
					Message:      "Data is fresh",
					Details:      map[string]any{"last_updated": s.LastUpdated, "days_since_update": days},
					SuggestedFix: "Update data source or check update schedule",
				}
				if !res.Valid {
					res.Message = fmt.Sprintf("Data is %d days old", int(math.Round(days)))
				}
				return res
			},
		},
	}
}

// AddRule appends a rule.
func (c *Checker) AddRule(r Rule) {
	c.mu.Lock()
	c.rules = append(c.rules, r)
	c.mu.Unlock()
}

// RemoveRule deletes the rule with id and reports whether one was removed.
func (c *Checker) RemoveRule(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.rules {
		if r.ID == id {
			c.rules = append(c.rules[:i], c.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a copy of the configured rules.
func (c *Checker) Rules() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Rule(nil), c.rules...)
}

// Check scores snap against every rule. A panicking rule counts as a failed
// error-severity rule.
func (c *Checker) Check(sourceID string, snap *models.RateSnapshot) QualityReport {
	rules := c.Rules()
	now := c.now()

	rep := QualityReport{
		SourceID:   sourceID,
		Timestamp:  now,
		TotalRules: len(rules),
		Results:    make([]RuleOutcome, 0, len(rules)),
	}
	for _, r := range rules {
		out := RuleOutcome{RuleID: r.ID, RuleName: r.Name, Severity: r.Severity}
		var crashed bool
		out.Result, crashed = runRule(r, snap, now)
		if crashed {
			out.Severity = SeverityError
		}
		if out.Result.Valid {
			rep.PassedRules++
		} else {
			rep.FailedRules++
			switch out.Severity {
			case SeverityError:
				rep.Errors++
			case SeverityWarning:
				rep.Warnings++
			}
		}
		rep.Results = append(rep.Results, out)
	}

	rep.OverallScore = 100
	if len(rules) > 0 {
		rep.OverallScore = int(math.Round(float64(rep.PassedRules) / float64(len(rules)) * 100))
	}
	rep.Recommendations = recommendations(rep)
	return rep
}

func runRule(r Rule, snap *models.RateSnapshot, now time.Time) (res RuleResult, crashed bool) {
	defer func() {
		if p := recover(); p != nil {
			crashed = true
			res = RuleResult{
				Message:      "Validation rule failed",
				Details:      map[string]any{"panic": fmt.Sprint(p)},
				SuggestedFix: "Check validation rule implementation",
			}
		}
	}()
	if snap == nil {
		return RuleResult{Message: "no snapshot"}, false
	}
	return r.Check(snap, now), false
}

func recommendations(rep QualityReport) []string {
	var recs []string
	if rep.Errors > 0 {
		recs = append(recs, fmt.Sprintf("Address %d critical data quality error(s) immediately", rep.Errors))
	}
	if rep.Warnings > 0 {
		recs = append(recs, fmt.Sprintf("Review %d data quality warning(s) for potential improvements", rep.Warnings))
	}
	if rep.Errors == 0 && rep.Warnings == 0 {
		recs = append(recs, "Data quality is excellent - no issues detected")
	}

	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		seen[r] = true
	}
	for _, o := range rep.Results {
		fix := o.Result.SuggestedFix
		if !o.Result.Valid && fix != "" && !seen[fix] {
			seen[fix] = true
			recs = append(recs, fix)
		}
	}
	return recs
}

// QualitySummary aggregates reports across sources.
type QualitySummary struct {
	AverageScore        int    `json:"average_score"`
	TotalSources        int    `json:"total_sources"`
	SourcesWithErrors   int    `json:"sources_with_errors"`
	SourcesWithWarnings int    `json:"sources_with_warnings"`
	TotalErrors         int    `json:"total_errors"`
	TotalWarnings       int    `json:"total_warnings"`
	WorstSource         string `json:"worst_source,omitempty"`
	BestSource          string `json:"best_source,omitempty"`
}

// Summarize aggregates reports.
func Summarize(reports []QualityReport) QualitySummary {
	if len(reports) == 0 {
		return QualitySummary{}
	}

	var s QualitySummary
	total := 0
	for _, r := range reports {
		total += r.OverallScore
		s.TotalErrors += r.Errors
		s.TotalWarnings += r.Warnings
		if r.Errors > 0 {
			s.SourcesWithErrors++
		}
		if r.Warnings > 0 {
			s.SourcesWithWarnings++
		}
	}
	s.TotalSources = len(reports)
	s.AverageScore = int(math.Round(float64(total) / float64(len(reports))))

	sorted := append([]QualityReport(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OverallScore < sorted[j].OverallScore
	})
	s.WorstSource = sorted[0].SourceID
	s.BestSource = sorted[len(sorted)-1].SourceID
	return s
}

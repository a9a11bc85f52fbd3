// Package qa runs quality checks over every registered calculator:
// accuracy against worked examples, the shared validation properties,
// and calculation performance.
package qa

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/pkg/models"
)

// Status of a test or report.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Severity of a failed detail.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Test kinds.
const (
	TestAccuracy    = "accuracy"
	TestValidation  = "validation"
	TestPerformance = "performance"
)

// Detail is one check within a test.
type Detail struct {
	Name     string   `json:"name"`
	Status   Status   `json:"status"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// TestResult is the outcome of one test kind for one calculator.
type TestResult struct {
	Kind    string   `json:"kind"`
	Status  Status   `json:"status"`
	Score   float64  `json:"score"` // 0-100
	Details []Detail `json:"details"`
}

// Report aggregates the tests run against one calculator.
type Report struct {
	CalculatorID string        `json:"calculator_id"`
	Name         string        `json:"name"`
	Category     string        `json:"category"`
	Status       Status        `json:"status"`
	Score        float64       `json:"score"`
	Tests        []TestResult  `json:"tests"`
	Duration     time.Duration `json:"duration_ns"`
}

// Summary aggregates a full run.
type Summary struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Total        int       `json:"total"`
	Passed       int       `json:"passed"`
	Warnings     int       `json:"warnings"`
	Failed       int       `json:"failed"`
	AverageScore float64   `json:"average_score"`
	Best         string    `json:"best,omitempty"`
	Worst        string    `json:"worst,omitempty"`
	Reports      []Report  `json:"reports"`
}

// Progress is delivered to Options.OnProgress after each calculator.
type Progress struct {
	RunID     string `json:"run_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Report    Report `json:"report"`
}

// Options configures a Runner.
type Options struct {
	Concurrency int           // parallel calculators; < 1 means 4
	Tolerance   float64       // default absolute tolerance for examples
	MaxCalcTime time.Duration // per-calculation performance threshold
	Iterations  int           // performance test iterations
	Timeout     time.Duration // per-calculator timeout; 0 means none
	Calculators []string      // restrict the run to these IDs
	OnProgress  func(Progress)
	Logger      *zap.Logger
}

// Runner executes QA runs.
type Runner struct {
	opts Options

	mu   sync.RWMutex
	last *Summary
}

// NewRunner creates a runner, filling unset options with defaults.
func NewRunner(opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 0.01
	}
	if opts.MaxCalcTime <= 0 {
		opts.MaxCalcTime = 100 * time.Millisecond
	}
	if opts.Iterations < 1 {
		opts.Iterations = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts}
}

// Last returns the most recent completed summary, or nil.
func (r *Runner) Last() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run tests every selected calculator in reg concurrently. Selecting an ID
// that is not registered fails the run with ErrCalculatorNotFound.
func (r *Runner) Run(ctx context.Context, reg *calculator.Registry) (*Summary, error) {
	infos := reg.List()
	if len(r.opts.Calculators) > 0 {
		want := make(map[string]bool, len(r.opts.Calculators))
		var missing []error
		for _, id := range r.opts.Calculators {
			if _, err := reg.Get(id); err != nil {
				missing = append(missing, err)
				continue
			}
			want[id] = true
		}
		if len(missing) > 0 {
			return nil, errors.Join(missing...)
		}
		filtered := infos[:0]
		for _, info := range infos {
			if want[info.ID] {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}

	sum := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Total:     len(infos),
		Reports:   make([]Report, len(infos)),
	}
	r.opts.Logger.Info("qa run started",
		zap.String("run_id", sum.RunID),
		zap.Int("calculators", len(infos)),
		zap.Int("concurrency", r.opts.Concurrency))

	var (
		mu        sync.Mutex
		completed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, info := range infos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := reg.Get(info.ID)
			if err != nil {
				return err
			}

			cctx := gctx
			if r.opts.Timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(gctx, r.opts.Timeout)
				defer cancel()
			}
			rep := r.RunOne(cctx, c)
			sum.Reports[i] = rep

			mu.Lock()
			completed++
			p := Progress{RunID: sum.RunID, Completed: completed, Total: len(infos), Report: rep}
			if r.opts.OnProgress != nil {
				r.opts.OnProgress(p)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("qa run %s: %w", sum.RunID, err)
	}

	finalize(sum)
	r.opts.Logger.Info("qa run finished",
		zap.String("run_id", sum.RunID),
		zap.Int("passed", sum.Passed),
		zap.Int("warnings", sum.Warnings),
		zap.Int("failed", sum.Failed),
		zap.Float64("average_score", sum.AverageScore))

	r.mu.Lock()
	r.last = sum
	r.mu.Unlock()
	return sum, nil
}

// RunOne runs every test against a single calculator.
func (r *Runner) RunOne(ctx context.Context, c calculator.Calculator) Report {
	start := time.Now()
	info := c.Info()

	tests := []TestResult{
		r.accuracy(ctx, c),
		validation(c),
		r.performance(ctx, c),
	}

	var total float64
	var scored int
	for _, t := range tests {
		if t.Status == StatusSkipped {
			continue
		}
		total += t.Score
		scored++
	}
	score := 0.0
	if scored > 0 {
		score = total / float64(scored)
	}

	return Report{
		CalculatorID: info.ID,
		Name:         info.Name,
		Category:     info.Category,
		Status:       statusFor(score, 95, 80),
		Score:        math.Round(score*100) / 100,
		Tests:        tests,
		Duration:     time.Since(start),
	}
}

func (r *Runner) accuracy(ctx context.Context, c calculator.Calculator) TestResult {
	res := TestResult{Kind: TestAccuracy}
	var benchmarks, passed int

	for _, ex := range c.Info().Examples {
		if ex.Expected == nil {
			continue
		}
		benchmarks++
		tol := ex.Tolerance
		if tol <= 0 {
			tol = r.opts.Tolerance
		}

		out, err := c.Calculate(ctx, ex.Inputs)
		if err != nil {
			res.Details = append(res.Details, Detail{
				Name:     ex.Name,
				Status:   StatusFailed,
				Message:  fmt.Sprintf("Calculation error: %v", err),
				Severity: SeverityCritical,
			})
			continue
		}

		got, want := out.Results.Result, *ex.Expected
		diff := math.Abs(got - want)
		if diff <= tol {
			passed++
			res.Details = append(res.Details, Detail{
				Name:     ex.Name,
				Status:   StatusPassed,
				Message:  fmt.Sprintf("Result %g matches expected %g", got, want),
				Severity: SeverityLow,
			})
			continue
		}
		sev := SeverityHigh
		if want != 0 && diff/math.Abs(want) > 0.1 {
			sev = SeverityCritical
		}
		res.Details = append(res.Details, Detail{
			Name:     ex.Name,
			Status:   StatusFailed,
			Message:  fmt.Sprintf("Expected %g, got %g (difference %g exceeds tolerance %g)", want, got, diff, tol),
			Severity: sev,
		})
	}

	if benchmarks == 0 {
		res.Status = StatusSkipped
		res.Details = []Detail{{Name: "benchmarks", Status: StatusSkipped, Message: "No accuracy benchmarks defined", Severity: SeverityLow}}
		return res
	}
	res.Score = float64(passed) / float64(benchmarks) * 100
	res.Status = statusFor(res.Score, 95, 80)
	return res
}

var validationCases = []struct {
	name   string
	in     models.Inputs
	valid  bool
	errMsg string
}{
	{"negative value", models.Inputs{Value: models.Float(-5)}, false, calculator.MsgValueNonNegative},
	{"rate above 100", models.Inputs{Rate: models.Float(150)}, false, calculator.MsgRateRange},
	{"negative rate", models.Inputs{Rate: models.Float(-1)}, false, calculator.MsgRateRange},
	{"empty inputs", models.Inputs{}, true, ""},
	{"boundary inputs", models.Inputs{Value: models.Float(0), Rate: models.Float(100)}, true, ""},
}

func validation(c calculator.Calculator) TestResult {
	res := TestResult{Kind: TestValidation}
	passed := 0
	for _, tc := range validationCases {
		v := c.Validate(tc.in)
		ok := v.IsValid == tc.valid && v.Errors != nil && v.IsValid == (len(v.Errors) == 0)
		if ok && tc.errMsg != "" {
			ok = len(v.Errors) == 1 && v.Errors[0] == tc.errMsg
		}

		d := Detail{Name: tc.name, Status: StatusPassed, Message: "Validation behaves as expected", Severity: SeverityLow}
		if ok {
			passed++
		} else {
			d.Status = StatusFailed
			d.Message = fmt.Sprintf("got isValid=%v errors=%v", v.IsValid, v.Errors)
			d.Severity = SeverityHigh
		}
		res.Details = append(res.Details, d)
	}
	res.Score = float64(passed) / float64(len(validationCases)) * 100
	res.Status = statusFor(res.Score, 95, 80)
	return res
}

func (r *Runner) performance(ctx context.Context, c calculator.Calculator) TestResult {
	res := TestResult{Kind: TestPerformance}

	var in models.Inputs
	if ex := c.Info().Examples; len(ex) > 0 {
		in = ex[0].Inputs
	} else {
		in = models.Inputs{Value: models.Float(100), Rate: models.Float(5), Amount: models.Float(1000), Quantity: models.Float(10)}
	}

	var total time.Duration
	var runs, failed int
	var firstErr error
	for i := 0; i < r.opts.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		_, err := c.Calculate(ctx, in)
		total += time.Since(start)
		runs++
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if runs == 0 {
		res.Status = StatusFailed
		res.Details = []Detail{{Name: "calculation time", Status: StatusFailed, Message: "Run cancelled before any calculation", Severity: SeverityMedium}}
		return res
	}

	if failed > 0 {
		res.Status = StatusFailed
		res.Details = []Detail{{
			Name:     "calculation time",
			Status:   StatusFailed,
			Message:  fmt.Sprintf("%d of %d runs returned an error: %v", failed, runs, firstErr),
			Severity: SeverityHigh,
		}}
		return res
	}

	avg := total / time.Duration(runs)
	d := Detail{
		Name:     "calculation time",
		Status:   StatusPassed,
		Message:  fmt.Sprintf("Calculation completed in %s on average (threshold: %s)", avg, r.opts.MaxCalcTime),
		Severity: SeverityLow,
	}
	if avg > r.opts.MaxCalcTime {
		d.Status = StatusFailed
		d.Severity = SeverityMedium
		if avg > 2*r.opts.MaxCalcTime {
			d.Severity = SeverityHigh
		}
	} else {
		res.Score = 100
	}
	res.Details = []Detail{d}
	res.Status = statusFor(res.Score, 80, 60)
	return res
}

func statusFor(score, pass, warn float64) Status {
	switch {
	case score >= pass:
		return StatusPassed
	case score >= warn:
		return StatusWarning
	default:
		return StatusFailed
	}
}

func finalize(sum *Summary) {
	sum.FinishedAt = time.Now()
	if len(sum.Reports) == 0 {
		return
	}

	var total float64
	for _, rep := range sum.Reports {
		total += rep.Score
		switch rep.Status {
		case StatusPassed:
			sum.Passed++
		case StatusWarning:
			sum.Warnings++
		default:
			sum.Failed++
		}
	}
	sum.AverageScore = math.Round(total/float64(len(sum.Reports))*100) / 100

	ranked := append([]Report(nil), sum.Reports...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CalculatorID < ranked[j].CalculatorID
	})
	sum.Best = ranked[0].CalculatorID
	sum.Worst = ranked[len(ranked)-1].CalculatorID
}

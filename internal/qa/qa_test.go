package qa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/calculators"
	"github.com/seenimoa/calcthis/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubCalculator struct {
	calculator.BaseCalculator
	fn func(ctx context.Context, in models.Inputs) (float64, error)
}

func newStub(id string, examples []calculator.Example, fn func(context.Context, models.Inputs) (float64, error)) *stubCalculator {
	return &stubCalculator{
		BaseCalculator: calculator.NewBaseCalculator(calculator.Info{
			ID:       id,
			Name:     "Stub " + id,
			Category: "math",
			Examples: examples,
		}),
		fn: fn,
	}
}

func (s *stubCalculator) Calculate(ctx context.Context, in models.Inputs) (*models.Output, error) {
	start := time.Now()
	v, err := s.fn(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.Finish(in, v, start), nil
}

func double(_ context.Context, in models.Inputs) (float64, error) {
	v, _ := in.Get("value")
	return v * 2, nil
}

func example(value, expected float64) calculator.Example {
	return calculator.Example{
		Name:     "double",
		Inputs:   models.Inputs{Value: models.Float(value)},
		Expected: models.Float(expected),
	}
}

func TestRunOneAllPass(t *testing.T) {
	r := NewRunner(Options{})
	c := newStub("good", []calculator.Example{example(10, 20), example(1.5, 3)}, double)

	rep := r.RunOne(context.Background(), c)
	assert.Equal(t, "good", rep.CalculatorID)
	assert.Equal(t, StatusPassed, rep.Status)
	assert.Equal(t, 100.0, rep.Score)
	require.Len(t, rep.Tests, 3)
	assert.Equal(t, TestAccuracy, rep.Tests[0].Kind)
	assert.Equal(t, TestValidation, rep.Tests[1].Kind)
	assert.Equal(t, TestPerformance, rep.Tests[2].Kind)
	for _, tr := range rep.Tests {
		assert.Equal(t, StatusPassed, tr.Status, tr.Kind)
	}
}

func TestAccuracyFailures(t *testing.T) {
	r := NewRunner(Options{})
	c := newStub("wrong", []calculator.Example{
		example(10, 20),
		example(10, 30),   // off by a third
		example(10, 20.5), // off by 2.5%
	}, double)

	res := r.accuracy(context.Background(), c)
	assert.InDelta(t, 33.33, res.Score, 0.01)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Details, 3)
	assert.Equal(t, StatusPassed, res.Details[0].Status)
	assert.Equal(t, SeverityCritical, res.Details[1].Severity)
	assert.Equal(t, SeverityHigh, res.Details[2].Severity)
}

func TestAccuracyUsesExampleTolerance(t *testing.T) {
	r := NewRunner(Options{})
	ex := example(10, 20.4)
	ex.Tolerance = 0.5
	res := r.accuracy(context.Background(), newStub("tol", []calculator.Example{ex}, double))
	assert.Equal(t, StatusPassed, res.Status)
	assert.Equal(t, 100.0, res.Score)
}

func TestAccuracyCalculationError(t *testing.T) {
	r := NewRunner(Options{})
	c := newStub("broken", []calculator.Example{example(1, 2)}, func(context.Context, models.Inputs) (float64, error) {
		return 0, errors.New("boom")
	})
	res := r.accuracy(context.Background(), c)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Details, 1)
	assert.Equal(t, SeverityCritical, res.Details[0].Severity)
	assert.Contains(t, res.Details[0].Message, "boom")
}

func TestAccuracySkippedWithoutBenchmarks(t *testing.T) {
	r := NewRunner(Options{})
	rep := r.RunOne(context.Background(), newStub("plain", nil, double))
	assert.Equal(t, StatusSkipped, rep.Tests[0].Status)
	// Skipped tests do not drag the score down.
	assert.Equal(t, 100.0, rep.Score)
}

func TestValidationDetectsBrokenRules(t *testing.T) {
	res := validation(&permissive{newStub("lax", nil, double)})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Less(t, res.Score, 80.0)
}

// permissive accepts every input.
type permissive struct{ *stubCalculator }

func (p *permissive) Validate(models.Inputs) models.ValidationResult {
	return models.ValidationResult{IsValid: true, Errors: []string{}}
}

func TestPerformanceThreshold(t *testing.T) {
	slow := newStub("slow", nil, func(context.Context, models.Inputs) (float64, error) {
		time.Sleep(5 * time.Millisecond)
		return 1, nil
	})
	r := NewRunner(Options{MaxCalcTime: time.Millisecond, Iterations: 2})
	res := r.performance(context.Background(), slow)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 0.0, res.Score)
	require.Len(t, res.Details, 1)
	assert.Equal(t, SeverityHigh, res.Details[0].Severity)

	fast := NewRunner(Options{MaxCalcTime: time.Second, Iterations: 2})
	res = fast.performance(context.Background(), newStub("fast", nil, double))
	assert.Equal(t, StatusPassed, res.Status)
	assert.Equal(t, 100.0, res.Score)
}

func TestPerformanceCountsErrors(t *testing.T) {
	broken := newStub("broken", nil, func(context.Context, models.Inputs) (float64, error) {
		return 0, errors.New("boom")
	})
	r := NewRunner(Options{MaxCalcTime: time.Second, Iterations: 3})

	res := r.performance(context.Background(), broken)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 0.0, res.Score)
	require.Len(t, res.Details, 1)
	assert.Contains(t, res.Details[0].Message, "3 of 3 runs")
	assert.Contains(t, res.Details[0].Message, "boom")

	// Without examples the performance test is the only thing that calls
	// Calculate, so it must fail the report.
	rep := r.RunOne(context.Background(), broken)
	assert.NotEqual(t, StatusPassed, rep.Status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Status
	}{
		{100, StatusPassed},
		{95, StatusPassed},
		{94.9, StatusWarning},
		{80, StatusWarning},
		{79.9, StatusFailed},
		{0, StatusFailed},
	}
	for _, tt := range tests {
		if got := statusFor(tt.score, 95, 80); got != tt.want {
			t.Errorf("statusFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRunSummary(t *testing.T) {
	reg := calculator.NewRegistry()
	require.NoError(t, reg.Register(newStub("a-good", []calculator.Example{example(2, 4)}, double)))
	require.NoError(t, reg.Register(newStub("b-bad", []calculator.Example{example(2, 5)}, double)))
	require.NoError(t, reg.Register(newStub("c-good", []calculator.Example{example(3, 6)}, double)))

	var mu sync.Mutex
	var progress []Progress
	r := NewRunner(Options{
		Concurrency: 2,
		OnProgress: func(p Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
	})

	assert.Nil(t, r.Last())
	sum, err := r.Run(context.Background(), reg)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Passed)
	assert.Equal(t, 1, sum.Failed+sum.Warnings)
	assert.Equal(t, "a-good", sum.Best)
	assert.Equal(t, "b-bad", sum.Worst)
	require.Len(t, sum.Reports, 3)
	assert.Equal(t, "a-good", sum.Reports[0].CalculatorID)
	assert.False(t, sum.FinishedAt.Before(sum.StartedAt))

	require.Len(t, progress, 3)
	for i, p := range progress {
		assert.Equal(t, sum.RunID, p.RunID)
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, 3, p.Total)
	}
	assert.Same(t, sum, r.Last())
}

func TestRunFilter(t *testing.T) {
	reg := calculator.NewRegistry()
	require.NoError(t, reg.Register(newStub("one", nil, double)))
	require.NoError(t, reg.Register(newStub("two", nil, double)))

	sum, err := NewRunner(Options{Calculators: []string{"two"}}).Run(context.Background(), reg)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Total)
	assert.Equal(t, "two", sum.Reports[0].CalculatorID)
}

func TestRunUnknownCalculator(t *testing.T) {
	reg := calculator.NewRegistry()
	require.NoError(t, reg.Register(newStub("one", nil, double)))

	sum, err := NewRunner(Options{Calculators: []string{"one", "typo"}}).Run(context.Background(), reg)
	require.Error(t, err)
	assert.Nil(t, sum)
	var notFound *calculator.ErrCalculatorNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "typo", notFound.ID)
}

func TestRunCancelled(t *testing.T) {
	reg := calculator.NewRegistry()
	require.NoError(t, reg.Register(newStub("one", nil, double)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(Options{}).Run(ctx, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmptyRegistry(t *testing.T) {
	sum, err := NewRunner(Options{}).Run(context.Background(), calculator.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Total)
	assert.Empty(t, sum.Best)
}

func TestRunCatalog(t *testing.T) {
	reg := calculator.NewRegistry()
	_, err := calculators.RegisterAllTo(reg, calculators.Options{})
	require.NoError(t, err)

	sum, err := NewRunner(Options{Concurrency: 8, MaxCalcTime: time.Second, Iterations: 2}).Run(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, reg.Len(), sum.Total)
	for _, rep := range sum.Reports {
		assert.Equal(t, StatusPassed, rep.Status, "%s: %+v", rep.CalculatorID, rep.Tests)
	}
	assert.Equal(t, 100.0, sum.AverageScore)
}

// Package marketdata fetches benchmark rate snapshots from RSS feeds and
// HTML rate tables, checks their quality, and fills calculator rate inputs
// from them.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/pkg/models"
)

// Benchmark keys.
const (
	Conventional30 = "conventional30"
	Conventional15 = "conventional15"
	FHA30          = "fha30"
	VA30           = "va30"
	Jumbo30        = "jumbo30"
	Prime          = "prime"
)

// MortgageKeys are the benchmarks the range rule expects to be present.
var MortgageKeys = []string{Conventional30, Conventional15, FHA30, VA30, Jumbo30}

// Source provides rate snapshots.
type Source interface {
	// Name returns the human-readable name of this source.
	Name() string

	// Snapshot returns the current rates.
	Snapshot(ctx context.Context) (*models.RateSnapshot, error)
}

// ErrNoRates is returned when a source yields no parseable rates.
var ErrNoRates = fmt.Errorf("no rates found")

// ErrRateUnavailable is returned when a calculator's benchmark is missing
// from the snapshot.
type ErrRateUnavailable struct {
	Key    string
	Source string
}

func (e *ErrRateUnavailable) Error() string {
	return fmt.Sprintf("rate %q not available from %s", e.Key, e.Source)
}

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// UserAgent is sent with every request.
const UserAgent = "calcthis-marketdata/1.0"

// HTTPClient is the client used by sources that do not receive their own.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// doGet performs a GET request and returns the response body. The caller
// must close it.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	return resp.Body, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeKey turns a display name like "FHA 30-Year" into "fha30year".
func NormalizeKey(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// aliases maps common display spellings to benchmark keys.
var aliases = map[string]string{
	"30yearfixed":             Conventional30,
	"30yrfixed":               Conventional30,
	"conventional30year":      Conventional30,
	"30yearconventional":      Conventional30,
	"15yearfixed":             Conventional15,
	"15yrfixed":               Conventional15,
	"conventional15year":      Conventional15,
	"15yearconventional":      Conventional15,
	"fha30year":               FHA30,
	"30yearfha":               FHA30,
	"va30year":                VA30,
	"30yearva":                VA30,
	"jumbo30year":             Jumbo30,
	"30yearjumbo":             Jumbo30,
	"primerate":               Prime,
	"wsjprimerate":            Prime,
	"bankprimeloan":           Prime,
	"conventional30yearfixed": Conventional30,
}

// BenchmarkKey maps a display name onto a benchmark key.
func BenchmarkKey(name string) string {
	k := NormalizeKey(name)
	if alias, ok := aliases[k]; ok {
		return alias
	}
	return k
}

// ParsePercent parses strings like "6.85%", " 6.85 " or "6,85 %".
func ParsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || s == "-" || s == "N/A" {
		return 0, fmt.Errorf("empty rate")
	}
	return strconv.ParseFloat(s, 64)
}

// ApplyDefaultRate fills the rate input from src when the calculator names a
// benchmark and the caller omitted rate. The returned bool reports whether a
// rate was filled.
func ApplyDefaultRate(ctx context.Context, src Source, info calculator.Info, in models.Inputs) (models.Inputs, bool, error) {
	if info.MarketRate == "" || in.Rate != nil || src == nil {
		return in, false, nil
	}
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return in, false, fmt.Errorf("market rate for %s: %w", info.ID, err)
	}
	rate, ok := snap.Rate(info.MarketRate)
	if !ok {
		return in, false, &ErrRateUnavailable{Key: info.MarketRate, Source: src.Name()}
	}
	in.Rate = models.Float(rate)
	return in, true, nil
}

// StaticSource serves a fixed snapshot.
type StaticSource struct {
	snap models.RateSnapshot
}

// NewStaticSource creates a source that always returns snap.
func NewStaticSource(snap models.RateSnapshot) *StaticSource {
	if snap.Source == "" {
		snap.Source = "static"
	}
	return &StaticSource{snap: snap}
}

func (s *StaticSource) Name() string { return s.snap.Source }

func (s *StaticSource) Snapshot(ctx context.Context) (*models.RateSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := s.snap
	cp.Rates = make(map[string]float64, len(s.snap.Rates))
	for k, v := range s.snap.Rates {
		cp.Rates[k] = v
	}
	if cp.FetchedAt.IsZero() {
		cp.FetchedAt = time.Now()
	}
	return &cp, nil
}

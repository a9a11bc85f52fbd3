package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/internal/infra"
	"github.com/seenimoa/calcthis/pkg/models"
)

// DefaultSeriesURL is the FRED API root.
const DefaultSeriesURL = "https://api.stlouisfed.org/fred"

// DefaultSeries maps benchmark keys to FRED series IDs.
var DefaultSeries = map[string]string{
	Conventional30: "MORTGAGE30US",
	Conventional15: "MORTGAGE15US",
	FHA30:          "OBMMIFHA30YF",
	VA30:           "OBMMIVA30YF",
	Jumbo30:        "OBMMIJUMBO30YF",
	Prime:          "DPRIME",
}

// SeriesSource reads the latest observation of each benchmark from a
// FRED-compatible series/observations API.
type SeriesSource struct {
	baseURL string
	apiKey  string
	series  map[string]string
	client  *http.Client
	cache   *infra.Cache[*models.RateSnapshot]
	limiter *infra.RateLimiter
	logger  *zap.Logger
}

// NewSeriesSource creates a series-backed rate source. An empty baseURL uses
// DefaultSeriesURL and a nil series map uses DefaultSeries.
func NewSeriesSource(baseURL, apiKey string, series map[string]string, opts ...SourceOption) *SeriesSource {
	o := buildOptions(opts)
	if baseURL == "" {
		baseURL = DefaultSeriesURL
	}
	if series == nil {
		series = DefaultSeries
	}
	return &SeriesSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		series:  series,
		client:  o.client,
		cache:   infra.NewCache[*models.RateSnapshot](o.cacheTTL),
		limiter: infra.NewRateLimiter(o.requestsPerSec, time.Second),
		logger:  o.logger,
	}
}

func (s *SeriesSource) Name() string { return "series:" + s.baseURL }

type observationsResponse struct {
	Observations []observation `json:"observations"`
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"` // "." marks a missing value
}

// Snapshot fetches the newest observation of every series. Series that fail
// or have no value are skipped; LastUpdated is the oldest of the observation
// dates so staleness checks see the weakest benchmark.
func (s *SeriesSource) Snapshot(ctx context.Context) (*models.RateSnapshot, error) {
	if snap, ok := s.cache.Get(s.baseURL); ok {
		return snap, nil
	}

	snap := &models.RateSnapshot{
		Source:    s.Name(),
		Rates:     make(map[string]float64),
		FetchedAt: time.Now(),
	}

	keys := make([]string, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		obs, err := s.latest(ctx, s.series[key])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.series[key], err))
			continue
		}
		if obs == nil {
			continue
		}
		rate, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		snap.Rates[key] = rate
		if d := parseDate(obs.Date); !d.IsZero() && (snap.LastUpdated.IsZero() || d.Before(snap.LastUpdated)) {
			snap.LastUpdated = d
		}
	}

	if len(snap.Rates) == 0 {
		if len(errs) > 0 {
			return nil, fmt.Errorf("rate series %s: %w", s.baseURL, errors.Join(errs...))
		}
		return nil, ErrNoRates
	}
	if len(errs) > 0 {
		s.logger.Warn("some rate series unavailable",
			zap.String("url", s.baseURL),
			zap.Error(errors.Join(errs...)))
	}

	s.logger.Debug("rate series fetched",
		zap.String("url", s.baseURL),
		zap.Int("rates", len(snap.Rates)))
	s.cache.Set(s.baseURL, snap)
	return snap, nil
}

// latest returns the newest observation with a value, or nil when the
// series has none.
func (s *SeriesSource) latest(ctx context.Context, seriesID string) (*observation, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("sort_order", "desc")
	q.Set("limit", "5")
	q.Set("file_type", "json")
	if s.apiKey != "" {
		q.Set("api_key", s.apiKey)
	}

	body, err := doGet(ctx, s.client, s.baseURL+"/series/observations?"+q.Encode(),
		map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp observationsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse series JSON: %w", err)
	}
	for i := range resp.Observations {
		if resp.Observations[i].Value != "." && resp.Observations[i].Value != "" {
			return &resp.Observations[i], nil
		}
	}
	return nil, nil
}

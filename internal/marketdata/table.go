package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/internal/infra"
	"github.com/seenimoa/calcthis/pkg/models"
)

// DefaultRowSelector matches the rows of the first rate table on a page.
const DefaultRowSelector = "table.rates tbody tr, table#rates tbody tr"

// TableSource scrapes rates from an HTML table. Each matched row's first
// cell is the benchmark name and its second cell the rate.
type TableSource struct {
	url      string
	selector string
	apiKey   string
	client   *http.Client
	cache    *infra.Cache[*models.RateSnapshot]
	limiter  *infra.RateLimiter
	logger   *zap.Logger
}

// NewTableSource creates a table-scraping rate source. An empty selector uses
// DefaultRowSelector. A non-empty apiKey is sent as a bearer token.
func NewTableSource(url, selector, apiKey string, opts ...SourceOption) *TableSource {
	o := buildOptions(opts)
	if selector == "" {
		selector = DefaultRowSelector
	}
	return &TableSource{
		url:      url,
		selector: selector,
		apiKey:   apiKey,
		client:   o.client,
		cache:    infra.NewCache[*models.RateSnapshot](o.cacheTTL),
		limiter:  infra.NewRateLimiter(o.requestsPerSec, time.Second),
		logger:   o.logger,
	}
}

func (t *TableSource) Name() string { return "table:" + t.url }

// Snapshot downloads and parses the rate table, serving from cache when fresh.
func (t *TableSource) Snapshot(ctx context.Context) (*models.RateSnapshot, error) {
	if snap, ok := t.cache.Get(t.url); ok {
		return snap, nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	headers := map[string]string{"Accept": "text/html"}
	if t.apiKey != "" {
		headers["Authorization"] = "Bearer " + t.apiKey
	}
	body, err := doGet(ctx, t.client, t.url, headers)
	if err != nil {
		return nil, fmt.Errorf("rate table %s: %w", t.url, err)
	}
	defer body.Close()

	snap, err := ParseTable(body, t.selector, t.Name())
	if err != nil {
		return nil, err
	}

	t.logger.Debug("rate table fetched",
		zap.String("url", t.url),
		zap.Int("rates", len(snap.Rates)))
	t.cache.Set(t.url, snap)
	return snap, nil
}

// ParseTable extracts rates from an HTML document. LastUpdated is read from
// the first element carrying a data-updated attribute or a time element's
// datetime attribute (RFC 3339 or YYYY-MM-DD).
func ParseTable(r io.Reader, selector, source string) (*models.RateSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse rate table HTML: %w", err)
	}
	if selector == "" {
		selector = DefaultRowSelector
	}

	snap := &models.RateSnapshot{
		Source:    source,
		Rates:     make(map[string]float64),
		FetchedAt: time.Now(),
	}

	doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		rate, err := ParsePercent(cells.Eq(1).Text())
		if name == "" || err != nil {
			return
		}
		snap.Rates[BenchmarkKey(name)] = rate
	})

	if v, ok := doc.Find("[data-updated]").First().Attr("data-updated"); ok {
		snap.LastUpdated = parseDate(v)
	} else if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		snap.LastUpdated = parseDate(v)
	}

	if len(snap.Rates) == 0 {
		return nil, ErrNoRates
	}
	return snap, nil
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

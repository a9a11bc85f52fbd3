package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/internal/infra"
	"github.com/seenimoa/calcthis/pkg/models"
)

// FeedSource reads rates from an RSS or Atom feed whose item titles have the
// form "NAME: 6.85%".
type FeedSource struct {
	url     string
	parser  *gofeed.Parser
	cache   *infra.Cache[*models.RateSnapshot]
	limiter *infra.RateLimiter
	logger  *zap.Logger
}

// SourceOption configures a FeedSource or TableSource.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	cacheTTL       time.Duration
	requestsPerSec int
	logger         *zap.Logger
	client         *http.Client
}

// WithCacheTTL sets how long a fetched snapshot is reused.
func WithCacheTTL(ttl time.Duration) SourceOption {
	return func(o *sourceOptions) { o.cacheTTL = ttl }
}

// WithRequestsPerSecond limits outbound requests.
func WithRequestsPerSecond(n int) SourceOption {
	return func(o *sourceOptions) { o.requestsPerSec = n }
}

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(o *sourceOptions) {
		if c != nil {
			o.client = c
		}
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(l *zap.Logger) SourceOption {
	return func(o *sourceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []SourceOption) sourceOptions {
	o := sourceOptions{
		cacheTTL:       15 * time.Minute,
		requestsPerSec: 2,
		logger:         zap.NewNop(),
		client:         HTTPClient,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFeedSource creates a feed-backed rate source.
func NewFeedSource(url string, opts ...SourceOption) *FeedSource {
	o := buildOptions(opts)
	p := gofeed.NewParser()
	p.UserAgent = UserAgent
	p.Client = o.client
	return &FeedSource{
		url:     url,
		parser:  p,
		cache:   infra.NewCache[*models.RateSnapshot](o.cacheTTL),
		limiter: infra.NewRateLimiter(o.requestsPerSec, time.Second),
		logger:  o.logger,
	}
}

func (f *FeedSource) Name() string { return "feed:" + f.url }

// Snapshot fetches and parses the feed, serving from cache when fresh.
func (f *FeedSource) Snapshot(ctx context.Context) (*models.RateSnapshot, error) {
	if snap, ok := f.cache.Get(f.url); ok {
		return snap, nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse rate feed %s: %w", f.url, err)
	}
	snap, err := SnapshotFromFeed(feed, f.Name())
	if err != nil {
		return nil, err
	}

	f.logger.Debug("rate feed fetched",
		zap.String("url", f.url),
		zap.Int("rates", len(snap.Rates)))
	f.cache.Set(f.url, snap)
	return snap, nil
}

// ParseFeedString parses a feed document held in memory.
func ParseFeedString(doc, source string) (*models.RateSnapshot, error) {
	feed, err := gofeed.NewParser().ParseString(doc)
	if err != nil {
		return nil, fmt.Errorf("parse rate feed: %w", err)
	}
	return SnapshotFromFeed(feed, source)
}

// SnapshotFromFeed extracts rates from feed items. Items whose titles do not
// carry a parseable rate are skipped. LastUpdated is the newest item date,
// falling back to the feed's own update time.
func SnapshotFromFeed(feed *gofeed.Feed, source string) (*models.RateSnapshot, error) {
	snap := &models.RateSnapshot{
		Source:    source,
		Rates:     make(map[string]float64),
		FetchedAt: time.Now(),
	}

	for _, item := range feed.Items {
		name, val, ok := strings.Cut(item.Title, ":")
		if !ok {
			continue
		}
		rate, err := ParsePercent(val)
		if err != nil {
			continue
		}
		snap.Rates[BenchmarkKey(name)] = rate

		if item.PublishedParsed != nil && item.PublishedParsed.After(snap.LastUpdated) {
			snap.LastUpdated = *item.PublishedParsed
		}
		if item.UpdatedParsed != nil && item.UpdatedParsed.After(snap.LastUpdated) {
			snap.LastUpdated = *item.UpdatedParsed
		}
	}
	if snap.LastUpdated.IsZero() {
		switch {
		case feed.UpdatedParsed != nil:
			snap.LastUpdated = *feed.UpdatedParsed
		case feed.PublishedParsed != nil:
			snap.LastUpdated = *feed.PublishedParsed
		}
	}

	if len(snap.Rates) == 0 {
		return nil, ErrNoRates
	}
	return snap, nil
}

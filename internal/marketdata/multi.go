package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/calcthis/pkg/models"
)

// MultiSource fetches from several sources concurrently and merges the
// snapshots. Earlier sources take precedence for a key; later sources only
// fill keys that are missing.
type MultiSource struct {
	sources []Source
}

// NewMultiSource combines sources in priority order.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

func (m *MultiSource) Name() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Sources returns the underlying sources in priority order.
func (m *MultiSource) Sources() []Source { return m.sources }

// Snapshot fetches every source. Individual failures are tolerated as long
// as at least one source succeeds.
func (m *MultiSource) Snapshot(ctx context.Context) (*models.RateSnapshot, error) {
	if len(m.sources) == 0 {
		return nil, fmt.Errorf("no rate sources configured")
	}

	snaps := make([]*models.RateSnapshot, len(m.sources))
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		g.Go(func() error {
			snap, err := src.Snapshot(gctx)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
				mu.Unlock()
				return nil // non-fatal
			}
			snaps[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	merged := &models.RateSnapshot{
		Rates:     make(map[string]float64),
		FetchedAt: time.Now(),
	}
	var used []string
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		used = append(used, snap.Source)
		for k, v := range snap.Rates {
			if _, exists := merged.Rates[k]; !exists {
				merged.Rates[k] = v
			}
		}
		if snap.LastUpdated.After(merged.LastUpdated) {
			merged.LastUpdated = snap.LastUpdated
		}
	}
	if len(used) == 0 {
		return nil, errors.Join(errs...)
	}
	merged.Source = strings.Join(used, "+")
	return merged, nil
}

package woudc

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
	"github.com/couchcryptid/sonde-colocation/internal/observability"
)

// Source is anything that can fetch sonde reports for a date range.
type Source interface {
	FetchSondeReports(ctx context.Context, start, end time.Time, sites []string) ([]domain.SondeReport, error)
}

// CachedSource wraps a Source with an in-memory LRU cache keyed by query, so several
// datasets colocated over the same dates share one archive download.
type CachedSource struct {
	inner   Source
	cache   *lru.Cache[string, []domain.SondeReport]
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a sonde source holding at most
// maxEntries query results.
func NewCachedSource(inner Source, maxEntries int, metrics *observability.Metrics) (*CachedSource, error) {
	cache, err := lru.New[string, []domain.SondeReport](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("sonde cache: %w", err)
	}
	return &CachedSource{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}, nil
}

func (c *CachedSource) FetchSondeReports(ctx context.Context, start, end time.Time, sites []string) ([]domain.SondeReport, error) {
	key := queryKey(start, end, sites)
	if reports, ok := c.cache.Get(key); ok {
		c.metrics.SondeCache.WithLabelValues("hit").Inc()
		return slices.Clone(reports), nil
	}
	c.metrics.SondeCache.WithLabelValues("miss").Inc()

	reports, err := c.inner.FetchSondeReports(ctx, start, end, sites)
	if err != nil {
		return nil, err
	}
	// Empty answers are not cached so a late archive upload is picked up next time.
	if len(reports) > 0 {
		c.cache.Add(key, slices.Clone(reports))
	}
	return reports, nil
}

func queryKey(start, end time.Time, sites []string) string {
	sorted := slices.Clone(sites)
	slices.Sort(sorted)
	return fmt.Sprintf("%s|%s|%s", start.Format(time.DateOnly), end.Format(time.DateOnly), strings.Join(sorted, ","))
}

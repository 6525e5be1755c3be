package woudc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
	"github.com/couchcryptid/sonde-colocation/internal/observability"
)

const itemsPath = "/collections/ozonesonde/items"

// Client queries the WOUDC OGC API for ozonesonde reports.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	logger     *slog.Logger
	metrics    *observability.Metrics
	newBackOff func() backoff.BackOff
}

// NewClient creates a WOUDC API client.
func NewClient(baseURL string, pageSize int, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		pageSize:   pageSize,
		logger:     logger,
		metrics:    metrics,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	return bo
}

// FetchSondeReports pages through every ozonesonde feature launched between the
// first day of start and the last day of end. With sites set, each station is
// queried separately and the results are concatenated in site order.
func (c *Client) FetchSondeReports(ctx context.Context, start, end time.Time, sites []string) ([]domain.SondeReport, error) {
	if len(sites) == 0 {
		return c.fetchAll(ctx, start, end, "")
	}
	var reports []domain.SondeReport
	for _, site := range sites {
		r, err := c.fetchAll(ctx, start, end, site)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r...)
	}
	return reports, nil
}

func (c *Client) fetchAll(ctx context.Context, start, end time.Time, site string) ([]domain.SondeReport, error) {
	var reports []domain.SondeReport
	for offset := 0; ; offset += c.pageSize {
		page, err := c.fetchPage(ctx, start, end, site, offset)
		if err != nil {
			return nil, err
		}
		for _, r := range toReports(page.Features, c.logger) {
			if inRange(r.LaunchTime, start, end) {
				reports = append(reports, r)
			}
		}
		if len(page.Features) < c.pageSize {
			break
		}
		if page.NumberMatched > 0 && offset+len(page.Features) >= page.NumberMatched {
			break
		}
	}
	c.logger.Debug("sonde reports fetched", "site", site, "count", len(reports))
	return reports, nil
}

func (c *Client) fetchPage(ctx context.Context, start, end time.Time, site string, offset int) (featureCollection, error) {
	params := url.Values{}
	params.Set("f", "json")
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("datetime", datetimeInterval(start, end))
	if site != "" {
		params.Set("gaw_id", site)
	}
	reqURL := c.baseURL + itemsPath + "?" + params.Encode()

	var page featureCollection
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/geo+json")

		begin := time.Now()
		resp, err := c.httpClient.Do(req)
		c.metrics.SondeAPIDuration.Observe(time.Since(begin).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.metrics.SondeRequests.WithLabelValues("retry").Inc()
			return fmt.Errorf("woudc request: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck // best-effort cleanup

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			c.metrics.SondeRequests.WithLabelValues("retry").Inc()
			c.logger.Warn("woudc api unavailable, retrying", "status", resp.StatusCode, "offset", offset)
			return fmt.Errorf("woudc API error: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("woudc API error: status %d: %s", resp.StatusCode, string(body)))
		}

		page = featureCollection{}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return backoff.Permanent(fmt.Errorf("decode woudc response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		c.metrics.SondeRequests.WithLabelValues("error").Inc()
		return featureCollection{}, err
	}
	c.metrics.SondeRequests.WithLabelValues("success").Inc()
	return page, nil
}

// datetimeInterval formats the closed OGC datetime interval covering whole days.
func datetimeInterval(start, end time.Time) string {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
	return first.Format(time.RFC3339) + "/" + last.Format(time.RFC3339)
}

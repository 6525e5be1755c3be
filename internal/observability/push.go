package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the pushgateway job name for colocation runs.
const PushJob = "sonde_colocation"

// Push sends the run metrics to a Prometheus pushgateway, grouped by dataset.
// Runs are short-lived batch jobs, so they are pushed rather than scraped.
func (m *Metrics) Push(ctx context.Context, url, dataset string) error {
	err := push.New(url, PushJob).
		Gatherer(m.Gatherer).
		Grouping("dataset", dataset).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// PairTransformer implements Transformer with the domain harmonize, sensitivity
// and compare steps.
type PairTransformer struct {
	grid     []float64
	logSpace bool
	opts     domain.CompareOptions
}

// NewTransformer creates a PairTransformer on grid. logSpace selects the
// log-space averaging-kernel transform.
func NewTransformer(grid []float64, logSpace bool, opts domain.CompareOptions) *PairTransformer {
	return &PairTransformer{
		grid:     slices.Clone(grid),
		logSpace: logSpace,
		opts:     opts,
	}
}

// Grid returns the common pressure grid the transformer resamples onto.
func (t *PairTransformer) Grid() []float64 {
	return slices.Clone(t.grid)
}

func (t *PairTransformer) Transform(_ context.Context, pair domain.ColocatedPair, sonde domain.SondeProfile) (domain.ComparisonRecord, error) {
	h, err := domain.Harmonize(sonde, pair.Sounding, t.grid)
	if err != nil {
		return domain.ComparisonRecord{}, fmt.Errorf("harmonize: %w", err)
	}

	smoothed, err := domain.ApplySensitivity(h.Kernel, h.Apriori, h.Sonde, t.logSpace)
	if err != nil {
		return domain.ComparisonRecord{}, fmt.Errorf("averaging kernel: %w", err)
	}

	rec, err := domain.Compare(h.Grid, h.Ozone, smoothed, pair.Sounding.Latitude, pair.Sonde.LaunchTime, t.opts)
	if err != nil {
		return domain.ComparisonRecord{}, fmt.Errorf("compare: %w", err)
	}

	rec.Station = pair.Sonde.Station
	rec.DistanceKm = pair.DistanceKm
	rec.TimeDeltaHours = pair.TimeDeltaHours
	return rec, nil
}

package domain

import (
	"fmt"
	"math"
	"time"
)

// DefaultOutlierThresholdPercent is the surface percent difference at which a pair is rejected.
const DefaultOutlierThresholdPercent = 200.0

// CompareOptions tunes Compare.
type CompareOptions struct {
	BoundMode               BoundMode
	OutlierThresholdPercent float64 // DefaultOutlierThresholdPercent when zero
}

// IsOutlier reports whether |surfacePercent| reaches threshold.
func IsOutlier(surfacePercent, threshold float64) bool {
	return !(math.Abs(surfacePercent) < threshold)
}

// Compare builds the comparison record for a satellite profile and the sonde profile
// smoothed by the satellite's averaging kernel, both in ppb on grid (ascending
// pressure). A pair whose surface percent difference is an outlier returns ErrOutlier.
func Compare(grid, satellite, smoothedSonde []float64, lat float64, ts time.Time, opts CompareOptions) (ComparisonRecord, error) {
	n := len(grid)
	if len(satellite) != n || len(smoothedSonde) != n {
		return ComparisonRecord{}, fmt.Errorf("%w: grid %d, satellite %d, sonde %d",
			ErrShapeMismatch, n, len(satellite), len(smoothedSonde))
	}
	if n < 2 {
		return ComparisonRecord{}, fmt.Errorf("%w: %d grid levels", ErrInsufficientLevels, n)
	}
	threshold := opts.OutlierThresholdPercent
	if threshold <= 0 {
		threshold = DefaultOutlierThresholdPercent
	}

	percent := make([]float64, n)
	absolute := make([]float64, n)
	ratio := make([]float64, n)
	for i := range n {
		if smoothedSonde[i] == 0 {
			return ComparisonRecord{}, fmt.Errorf("%w: zero sonde value at %g hPa", ErrNumericDomain, grid[i])
		}
		absolute[i] = satellite[i] - smoothedSonde[i]
		ratio[i] = absolute[i] / smoothedSonde[i]
		percent[i] = 100 * ratio[i]
	}

	surface := percent[n-1]
	if IsOutlier(surface, threshold) {
		return ComparisonRecord{}, fmt.Errorf("%w: %.3f%% at %g hPa", ErrOutlier, surface, grid[n-1])
	}

	band, err := BandFor(lat)
	if err != nil {
		return ComparisonRecord{}, err
	}
	start, err := band.UpperBoundIndex(grid, opts.BoundMode)
	if err != nil {
		return ComparisonRecord{}, err
	}

	diffDU, err := ColumnDU(grid[start:], absolute[start:])
	if err != nil {
		return ComparisonRecord{}, err
	}
	// The percent column integrates the relative difference profile as if it were a
	// mixing ratio in ppb.
	ratioDU, err := ColumnDU(grid[start:], ratio[start:])
	if err != nil {
		return ComparisonRecord{}, err
	}

	return ComparisonRecord{
		DifferenceProfilePercent:      percent,
		DifferenceProfileAbsolute:     absolute,
		DifferenceTropospherePercent:  100 * ratioDU,
		DifferenceTroposphereAbsolute: diffDU,
		Latitude:                      lat,
		Timestamp:                     ts.UTC(),
	}, nil
}

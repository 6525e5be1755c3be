package domain

import (
	"fmt"
	"math"
	"slices"
)

// DefaultPressureGrid is the common comparison grid in hPa, top of atmosphere first.
var DefaultPressureGrid = []float64{
	10, 20, 30, 50, 70, 100, 150, 200, 250, 300,
	400, 500, 600, 700, 800, 850, 900, 925, 950, 1000,
}

// DefaultGrid returns a copy of DefaultPressureGrid.
func DefaultGrid() []float64 {
	return slices.Clone(DefaultPressureGrid)
}

// ValidateGrid checks that grid has at least two positive, finite, strictly
// ascending levels.
func ValidateGrid(grid []float64) error {
	if len(grid) < 2 {
		return fmt.Errorf("pressure grid needs at least 2 levels, got %d", len(grid))
	}
	for i, p := range grid {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return fmt.Errorf("pressure grid level %d is %g", i, p)
		}
		if i > 0 && p <= grid[i-1] {
			return fmt.Errorf("pressure grid not strictly ascending at level %d (%g after %g)", i, p, grid[i-1])
		}
	}
	return nil
}

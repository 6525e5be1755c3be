package domain

import (
	"fmt"
	"math"
	"strings"
)

// Column conversion constants.
const (
	gravity           = 9.8      // m s-2
	molarMassAir      = 28.96e-3 // kg mol-1
	avogadro          = 6.022e23 // mol-1
	moleculesPerDU    = 2.6867e16
	hPaToPa           = 100.0
	perM2ToPerCm2     = 1e-4
	ppbToPPM          = 1.0 / 1000
	ppmToMoleFraction = 1e-6
)

// ColumnDU integrates a ppb mixing-ratio profile into Dobson units. Layers lie between
// adjacent levels; each layer uses the mixing ratio interpolated at its midpoint
// pressure and its absolute pressure thickness. pressure must be strictly monotonic.
func ColumnDU(pressure, vmr []float64) (float64, error) {
	if len(pressure) != len(vmr) {
		return 0, fmt.Errorf("%w: %d pressure levels, %d values", ErrShapeMismatch, len(pressure), len(vmr))
	}
	if len(pressure) < 2 {
		return 0, fmt.Errorf("%w: column needs 2 levels, got %d", ErrInsufficientLevels, len(pressure))
	}

	_, p, series, err := NormalizeOrientation(pressure, vmr)
	if err != nil {
		return 0, err
	}

	mid := make([]float64, len(p)-1)
	for i := range mid {
		mid[i] = (p[i] + p[i+1]) / 2
	}
	vmrMid, err := Interp1D(p, series[0], mid)
	if err != nil {
		return 0, fmt.Errorf("column midpoints: %w", err)
	}

	total := 0.0
	for i, v := range vmrMid {
		dp := math.Abs(p[i+1] - p[i])
		total += layerDU(v, dp)
	}
	return total, nil
}

func layerDU(vmrPPB, dpHPa float64) float64 {
	moleFraction := vmrPPB * ppbToPPM * ppmToMoleFraction
	airColumn := dpHPa / gravity * hPaToPa * perM2ToPerCm2 / molarMassAir * avogadro / moleculesPerDU
	return moleFraction * airColumn
}

// Band is one row of the tropospheric column table.
type Band struct {
	Name          string
	Contains      func(lat float64) bool
	UpperPressure float64 // hPa
	LegacyIndex   int
}

// TroposphereBands lists the latitude bands in evaluation order; the first match wins.
// Upper bounds follow the HEGIFTOM tropospheric column convention.
var TroposphereBands = []Band{
	{
		Name:          "tropics",
		Contains:      func(lat float64) bool { return lat > -15 && lat < 15 },
		UpperPressure: 150,
		LegacyIndex:   11,
	},
	{
		Name:          "subtropics",
		Contains:      func(lat float64) bool { return (lat > -30 && lat <= -15) || (lat >= 15 && lat < 30) },
		UpperPressure: 200,
		LegacyIndex:   12,
	},
	{
		Name:          "midlatitudes",
		Contains:      func(lat float64) bool { return (lat > -60 && lat <= -30) || (lat >= 30 && lat < 60) },
		UpperPressure: 300,
		LegacyIndex:   14,
	},
	{
		Name:          "polar",
		Contains:      func(lat float64) bool { return lat <= -60 || lat >= 60 },
		UpperPressure: 400,
		LegacyIndex:   15,
	},
}

// BandFor returns the first band containing lat.
func BandFor(lat float64) (Band, error) {
	for _, b := range TroposphereBands {
		if b.Contains(lat) {
			return b, nil
		}
	}
	return Band{}, fmt.Errorf("%w: latitude %g outside every band", ErrComputation, lat)
}

// ValidateBands checks that every tropospheric band has an upper bound on grid
// under mode.
func ValidateBands(grid []float64, mode BoundMode) error {
	for _, b := range TroposphereBands {
		if _, err := b.UpperBoundIndex(grid, mode); err != nil {
			return err
		}
	}
	return nil
}

// BoundMode selects how a band's upper bound is located on the grid.
type BoundMode string

const (
	BoundByPressure BoundMode = "pressure"
	BoundByIndex    BoundMode = "index"
)

// ParseBoundMode accepts "pressure" or "index" in any letter case.
func ParseBoundMode(s string) (BoundMode, error) {
	switch m := BoundMode(strings.ToLower(strings.TrimSpace(s))); m {
	case BoundByPressure, BoundByIndex:
		return m, nil
	default:
		return "", fmt.Errorf("invalid column bound mode %q (expected pressure or index)", s)
	}
}

// UpperBoundIndex returns the grid index where the tropospheric column starts.
// In pressure mode it is the first level whose pressure is at least the band
// pressure; in index mode it is the legacy index.
func (b Band) UpperBoundIndex(grid []float64, mode BoundMode) (int, error) {
	switch mode {
	case BoundByIndex:
		if b.LegacyIndex < 0 || b.LegacyIndex > len(grid)-2 {
			return 0, fmt.Errorf("%w: %s index %d outside %d-level grid", ErrShapeMismatch, b.Name, b.LegacyIndex, len(grid))
		}
		return b.LegacyIndex, nil
	case BoundByPressure, "":
		for i, p := range grid {
			if p >= b.UpperPressure {
				if i > len(grid)-2 {
					break
				}
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: %s bound %g hPa leaves fewer than 2 levels on the grid", ErrShapeMismatch, b.Name, b.UpperPressure)
	default:
		return 0, fmt.Errorf("invalid column bound mode %q", mode)
	}
}

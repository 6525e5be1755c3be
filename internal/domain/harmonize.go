package domain

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// Harmonized holds both sides of a pair resampled onto the common grid.
type Harmonized struct {
	Grid    []float64
	Sonde   []float64          // ppb
	Ozone   []float64          // ppb
	Apriori []float64          // ppb
	Kernel  *sparse.DenseArray // len(Grid)×len(Grid)
}

// Harmonize normalizes the orientation of a cleaned sonde profile and a satellite
// sounding and interpolates both onto grid. Errors wrap ErrInterpolation or
// ErrShapeMismatch.
func Harmonize(sonde SondeProfile, sat SatelliteSounding, grid []float64) (Harmonized, error) {
	if err := ValidateGrid(grid); err != nil {
		return Harmonized{}, fmt.Errorf("%w: %w", ErrInterpolation, err)
	}

	_, sonde, err := NormalizeSonde(sonde)
	if err != nil {
		return Harmonized{}, err
	}
	_, sat, err = NormalizeSounding(sat)
	if err != nil {
		return Harmonized{}, err
	}

	sondeVMR, err := Interp1D(sonde.Pressure, sonde.VMR, grid)
	if err != nil {
		return Harmonized{}, fmt.Errorf("sonde profile: %w", err)
	}
	ozone, err := Interp1D(sat.Pressure, sat.Ozone, grid)
	if err != nil {
		return Harmonized{}, fmt.Errorf("satellite profile: %w", err)
	}
	apriori, err := Interp1D(sat.Pressure, sat.Apriori, grid)
	if err != nil {
		return Harmonized{}, fmt.Errorf("satellite apriori: %w", err)
	}
	kernel, err := Interp2D(sat.Pressure, sat.Pressure, sat.Kernel, grid, grid)
	if err != nil {
		return Harmonized{}, fmt.Errorf("averaging kernel: %w", err)
	}

	return Harmonized{
		Grid:    grid,
		Sonde:   sondeVMR,
		Ozone:   ozone,
		Apriori: apriori,
		Kernel:  kernel,
	}, nil
}

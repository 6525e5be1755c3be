package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// Interp1D evaluates the piecewise-linear function through (x, y) at every point of at.
// x must be strictly increasing and finite; points outside [x[0], x[n-1]] are linearly
// extrapolated from the end segments.
func Interp1D(x, y, at []float64) ([]float64, error) {
	if err := checkAxis("x", x); err != nil {
		return nil, err
	}
	if len(y) != len(x) {
		return nil, fmt.Errorf("%w: %d x values, %d y values", ErrInterpolation, len(x), len(y))
	}
	if !allFinite(y) {
		return nil, fmt.Errorf("%w: non-finite y value", ErrInterpolation)
	}

	out := make([]float64, len(at))
	for k, v := range at {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite evaluation point %g", ErrInterpolation, v)
		}
		i := segment(x, v)
		t := (v - x[i]) / (x[i+1] - x[i])
		out[k] = y[i] + t*(y[i+1]-y[i])
	}
	return out, nil
}

// Interp2D resamples z, sampled at rows y and columns x, onto rows ys and columns xs
// by bilinear interpolation. Points outside the sampled axes take the nearest edge
// value. z must be len(y)×len(x); the result is len(ys)×len(xs).
func Interp2D(x, y []float64, z *sparse.DenseArray, xs, ys []float64) (*sparse.DenseArray, error) {
	if err := checkAxis("x", x); err != nil {
		return nil, err
	}
	if err := checkAxis("y", y); err != nil {
		return nil, err
	}
	if z == nil || len(z.Shape) != 2 || z.Shape[0] != len(y) || z.Shape[1] != len(x) {
		return nil, fmt.Errorf("%w: surface shape %v for %d×%d axes", ErrInterpolation, kernelShape(z), len(y), len(x))
	}
	if !allFinite(z.Elements) {
		return nil, fmt.Errorf("%w: non-finite surface value", ErrInterpolation)
	}

	out := sparse.ZerosDense(len(ys), len(xs))
	for r, yv := range ys {
		if math.IsNaN(yv) || math.IsInf(yv, 0) {
			return nil, fmt.Errorf("%w: non-finite row coordinate %g", ErrInterpolation, yv)
		}
		yv = clamp(yv, y[0], y[len(y)-1])
		j := segment(y, yv)
		ty := (yv - y[j]) / (y[j+1] - y[j])

		for c, xv := range xs {
			if math.IsNaN(xv) || math.IsInf(xv, 0) {
				return nil, fmt.Errorf("%w: non-finite column coordinate %g", ErrInterpolation, xv)
			}
			xv = clamp(xv, x[0], x[len(x)-1])
			i := segment(x, xv)
			tx := (xv - x[i]) / (x[i+1] - x[i])

			z00 := z.Get(j, i)
			z01 := z.Get(j, i+1)
			z10 := z.Get(j+1, i)
			z11 := z.Get(j+1, i+1)
			v := (1-ty)*((1-tx)*z00+tx*z01) + ty*((1-tx)*z10+tx*z11)
			out.Set(v, r, c)
		}
	}
	return out, nil
}

// segment returns i such that x[i] ≤ v ≤ x[i+1], clamped to the first or last segment.
func segment(x []float64, v float64) int {
	i := sort.SearchFloat64s(x, v) - 1
	if i < 0 {
		return 0
	}
	if i > len(x)-2 {
		return len(x) - 2
	}
	return i
}

func checkAxis(name string, x []float64) error {
	if len(x) < 2 {
		return fmt.Errorf("%w: %s axis has %d points", ErrInterpolation, name, len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite %s value at %d", ErrInterpolation, name, i)
		}
		if i > 0 && v <= x[i-1] {
			return fmt.Errorf("%w: %s axis not strictly increasing at %d", ErrInterpolation, name, i)
		}
	}
	return nil
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

package domain

import (
	"fmt"
	"slices"

	"github.com/ctessum/sparse"
)

// Orientation records what NormalizeOrientation did to a pressure sequence.
type Orientation int

const (
	AlreadyAscending Orientation = iota
	Reversed
)

func (o Orientation) String() string {
	if o == Reversed {
		return "reversed"
	}
	return "already_ascending"
}

// PressureOrientation inspects the first two levels. A sequence that starts at the
// surface (p[0] > p[1]) needs reversing.
func PressureOrientation(pressure []float64) Orientation {
	if len(pressure) >= 2 && pressure[0] > pressure[1] {
		return Reversed
	}
	return AlreadyAscending
}

// NormalizeOrientation returns pressure and every series in ascending pressure order
// (top of atmosphere first, surface last). Inputs are never modified; when no reversal
// is needed the returned slices are copies all the same. Applying it twice is the same
// as applying it once.
func NormalizeOrientation(pressure []float64, series ...[]float64) (Orientation, []float64, [][]float64, error) {
	for i, s := range series {
		if len(s) != len(pressure) {
			return 0, nil, nil, fmt.Errorf("%w: series %d has %d levels, pressure has %d",
				ErrShapeMismatch, i, len(s), len(pressure))
		}
	}

	o := PressureOrientation(pressure)
	p := slices.Clone(pressure)
	out := make([][]float64, len(series))
	for i, s := range series {
		out[i] = slices.Clone(s)
	}
	if o == Reversed {
		slices.Reverse(p)
		for _, s := range out {
			slices.Reverse(s)
		}
	}
	return o, p, out, nil
}

// NormalizeSounding returns a copy of s in ascending pressure order, with the
// kernel reversed along both axes when the levels are.
func NormalizeSounding(s SatelliteSounding) (Orientation, SatelliteSounding, error) {
	if err := s.Validate(); err != nil {
		return 0, SatelliteSounding{}, err
	}
	o, p, series, err := NormalizeOrientation(s.Pressure, s.Ozone, s.Apriori)
	if err != nil {
		return 0, SatelliteSounding{}, err
	}

	out := s
	out.Pressure = p
	out.Ozone = series[0]
	out.Apriori = series[1]
	if o == Reversed {
		out.Kernel = reverseKernel(s.Kernel)
	} else {
		out.Kernel = copyKernel(s.Kernel)
	}
	return o, out, nil
}

// NormalizeSonde returns a copy of p in ascending pressure order.
func NormalizeSonde(p SondeProfile) (Orientation, SondeProfile, error) {
	o, pressure, series, err := NormalizeOrientation(p.Pressure, p.VMR)
	if err != nil {
		return 0, SondeProfile{}, err
	}
	out := p
	out.Pressure = pressure
	out.VMR = series[0]
	return o, out, nil
}

func copyKernel(k *sparse.DenseArray) *sparse.DenseArray {
	out := sparse.ZerosDense(k.Shape...)
	copy(out.Elements, k.Elements)
	return out
}

func reverseKernel(k *sparse.DenseArray) *sparse.DenseArray {
	n, m := k.Shape[0], k.Shape[1]
	out := sparse.ZerosDense(n, m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			out.Set(k.Get(i, j), n-1-i, m-1-j)
		}
	}
	return out
}

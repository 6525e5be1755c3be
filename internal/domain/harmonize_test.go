package domain

import (
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(n int) *sparse.DenseArray {
	a := sparse.ZerosDense(n, n)
	for i := range n {
		a.Set(1, i, i)
	}
	return a
}

func matrix(rows [][]float64) *sparse.DenseArray {
	a := sparse.ZerosDense(len(rows), len(rows[0]))
	for i, r := range rows {
		for j, v := range r {
			a.Set(v, i, j)
		}
	}
	return a
}

func TestNormalizeOrientation(t *testing.T) {
	t.Run("surface first is reversed", func(t *testing.T) {
		o, p, s, err := NormalizeOrientation([]float64{1000, 500, 100}, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, Reversed, o)
		assert.Equal(t, []float64{100, 500, 1000}, p)
		assert.Equal(t, []float64{3, 2, 1}, s[0])
	})

	t.Run("ascending is kept", func(t *testing.T) {
		o, p, s, err := NormalizeOrientation([]float64{100, 500, 1000}, []float64{3, 2, 1})
		require.NoError(t, err)
		assert.Equal(t, AlreadyAscending, o)
		assert.Equal(t, []float64{100, 500, 1000}, p)
		assert.Equal(t, []float64{3, 2, 1}, s[0])
	})

	t.Run("idempotent", func(t *testing.T) {
		_, p1, s1, err := NormalizeOrientation([]float64{1000, 850, 500}, []float64{40, 50, 60})
		require.NoError(t, err)
		o2, p2, s2, err := NormalizeOrientation(p1, s1...)
		require.NoError(t, err)
		assert.Equal(t, AlreadyAscending, o2)
		assert.Equal(t, p1, p2)
		assert.Equal(t, s1, s2)
	})

	t.Run("inputs untouched", func(t *testing.T) {
		in := []float64{1000, 500}
		_, _, _, err := NormalizeOrientation(in)
		require.NoError(t, err)
		assert.Equal(t, []float64{1000, 500}, in)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, _, _, err := NormalizeOrientation([]float64{1000, 500}, []float64{1})
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	assert.Equal(t, "reversed", Reversed.String())
	assert.Equal(t, "already_ascending", AlreadyAscending.String())
}

func TestNormalizeSounding(t *testing.T) {
	s := SatelliteSounding{
		Pressure: []float64{1000, 500},
		Ozone:    []float64{30, 60},
		Apriori:  []float64{35, 55},
		Kernel:   matrix([][]float64{{1, 2}, {3, 4}}),
	}

	o, out, err := NormalizeSounding(s)
	require.NoError(t, err)
	assert.Equal(t, Reversed, o)
	assert.Equal(t, []float64{500, 1000}, out.Pressure)
	assert.Equal(t, []float64{60, 30}, out.Ozone)
	assert.Equal(t, []float64{55, 35}, out.Apriori)
	assert.Equal(t, 4.0, out.Kernel.Get(0, 0))
	assert.Equal(t, 3.0, out.Kernel.Get(0, 1))
	assert.Equal(t, 2.0, out.Kernel.Get(1, 0))
	assert.Equal(t, 1.0, out.Kernel.Get(1, 1))

	again, out2, err := NormalizeSounding(out)
	require.NoError(t, err)
	assert.Equal(t, AlreadyAscending, again)
	assert.Equal(t, out.Kernel.Elements, out2.Kernel.Elements)

	// The source kernel is not modified.
	assert.Equal(t, 1.0, s.Kernel.Get(0, 0))

	s.Apriori = s.Apriori[:1]
	_, _, err = NormalizeSounding(s)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestInterp1D(t *testing.T) {
	x := []float64{100, 200, 400}
	y := []float64{10, 20, 60}

	t.Run("interior and nodes", func(t *testing.T) {
		out, err := Interp1D(x, y, []float64{100, 150, 300, 400})
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{10, 15, 40, 60}, out, 1e-12)
	})

	t.Run("linear extrapolation", func(t *testing.T) {
		out, err := Interp1D(x, y, []float64{50, 500})
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{5, 80}, out, 1e-12)
	})

	t.Run("degenerate axis", func(t *testing.T) {
		_, err := Interp1D([]float64{100}, []float64{1}, []float64{100})
		require.ErrorIs(t, err, ErrInterpolation)

		_, err = Interp1D([]float64{100, 100}, []float64{1, 2}, []float64{100})
		require.ErrorIs(t, err, ErrInterpolation)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Interp1D(x, y[:2], []float64{100})
		require.ErrorIs(t, err, ErrInterpolation)
	})
}

func TestInterp2D(t *testing.T) {
	axis := []float64{100, 200}
	z := matrix([][]float64{{0, 1}, {2, 3}})

	out, err := Interp2D(axis, axis, z, []float64{100, 150, 300}, []float64{50, 150})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, out.Shape)

	// Row 50 clamps to the first row.
	assert.InDelta(t, 0.0, out.Get(0, 0), 1e-12)
	assert.InDelta(t, 0.5, out.Get(0, 1), 1e-12)
	assert.InDelta(t, 1.0, out.Get(0, 2), 1e-12)
	// Row 150 sits halfway between rows.
	assert.InDelta(t, 1.0, out.Get(1, 0), 1e-12)
	assert.InDelta(t, 1.5, out.Get(1, 1), 1e-12)
	assert.InDelta(t, 2.0, out.Get(1, 2), 1e-12)

	_, err = Interp2D(axis, axis, matrix([][]float64{{1, 2, 3}}), axis, axis)
	require.ErrorIs(t, err, ErrInterpolation)
}

func TestHarmonize(t *testing.T) {
	grid := []float64{100, 300, 500, 1000}
	sonde := SondeProfile{
		Station:    "053",
		LaunchTime: time.Date(2020, 7, 14, 11, 30, 0, 0, time.UTC),
		Pressure:   []float64{1000, 500, 100},
		VMR:        []float64{40, 60, 200},
	}
	sat := SatelliteSounding{
		Pressure: []float64{100, 500, 1000},
		Ozone:    []float64{190, 70, 45},
		Apriori:  []float64{180, 65, 42},
		Kernel:   identity(3),
	}

	h, err := Harmonize(sonde, sat, grid)
	require.NoError(t, err)
	assert.Equal(t, grid, h.Grid)
	assert.InDeltaSlice(t, []float64{200, 130, 60, 40}, h.Sonde, 1e-9)
	assert.InDeltaSlice(t, []float64{190, 130, 70, 45}, h.Ozone, 1e-9)
	assert.Equal(t, []int{4, 4}, h.Kernel.Shape)
	assert.InDelta(t, 1.0, h.Kernel.Get(0, 0), 1e-12)
	assert.InDelta(t, 1.0, h.Kernel.Get(3, 3), 1e-12)

	t.Run("grid must ascend", func(t *testing.T) {
		_, err := Harmonize(sonde, sat, []float64{1000, 500})
		require.ErrorIs(t, err, ErrInterpolation)
	})

	t.Run("bad sounding shape", func(t *testing.T) {
		bad := sat
		bad.Kernel = identity(2)
		_, err := Harmonize(sonde, bad, grid)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestValidateGrid(t *testing.T) {
	require.NoError(t, ValidateGrid(DefaultGrid()))
	assert.Len(t, DefaultPressureGrid, 20)
	require.Error(t, ValidateGrid([]float64{10}))
	require.Error(t, ValidateGrid([]float64{10, 0}))
	require.Error(t, ValidateGrid([]float64{20, 10}))
}

package domain

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"
)

// EarthRadiusKm is the mean spherical radius used for colocation distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two points
// given in decimal degrees. It returns ErrComputation if any coordinate is not finite.
func HaversineKm(lat1, lon1, lat2, lon2 float64) (float64, error) {
	for _, v := range [...]float64{lat1, lon1, lat2, lon2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: non-finite coordinate in (%g, %g) -> (%g, %g)",
				ErrComputation, lat1, lon1, lat2, lon2)
		}
	}

	φ1 := unit.AngleFromDeg(lat1)
	φ2 := unit.AngleFromDeg(lat2)
	halfDφ := unit.AngleFromDeg(lat2-lat1) / 2
	halfDλ := unit.AngleFromDeg(lon2-lon1) / 2

	sinφ := halfDφ.Sin()
	sinλ := halfDλ.Sin()
	a := sinφ*sinφ + φ1.Cos()*φ2.Cos()*sinλ*sinλ
	// Rounding can push a a hair past 1 for antipodal points.
	a = math.Min(a, 1)

	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(a)), nil
}

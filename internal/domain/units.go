package domain

import (
	"fmt"
	"strings"
)

// OzoneUnits names the unit a satellite product reports ozone in.
type OzoneUnits string

const (
	UnitsNone OzoneUnits = "None" // mole fraction
	UnitsPPB  OzoneUnits = "ppb"
	UnitsPPM  OzoneUnits = "ppm"
)

// ParseOzoneUnits accepts None, ppb or ppm in any letter case.
func ParseOzoneUnits(s string) (OzoneUnits, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return UnitsNone, nil
	case "ppb":
		return UnitsPPB, nil
	case "ppm":
		return UnitsPPM, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: None, ppb, ppm)", ErrUnsupportedUnits, s)
	}
}

// PPBFactor returns the multiplier that converts values in u to ppb.
func (u OzoneUnits) PPBFactor() (float64, error) {
	switch u {
	case UnitsNone:
		return 1e9, nil
	case UnitsPPB:
		return 1, nil
	case UnitsPPM:
		return 1000, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnits, string(u))
	}
}

// ScaleToPPB returns a copy of values converted from u to ppb.
func ScaleToPPB(values []float64, u OzoneUnits) ([]float64, error) {
	f, err := u.PPBFactor()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * f
	}
	return out, nil
}

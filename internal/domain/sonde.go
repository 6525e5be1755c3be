package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultMissingValueLimit is the number of unparseable rows tolerated in a sonde report.
	DefaultMissingValueLimit = 5

	durationHeader = "Duration"

	// partialPressureScale converts mPa partial pressure over hPa total pressure
	// to a mole fraction: 1e-3 / 1e2.
	partialPressureScale = 100000.0
	ppb                  = 1e9
)

// CleanSondeReport parses a WOUDC data block into a SondeProfile.
//
// The header line and the final line of the block are not data rows.
// Rows whose pressure or ozone field does not parse count as missing values and are
// skipped; reaching missingLimit (DefaultMissingValueLimit when ≤ 0) returns
// ErrTooManyMissingValues. Rows with non-positive pressure or ozone are dropped, and
// a repeated pressure keeps its first row.
func CleanSondeReport(r SondeReport, missingLimit int) (SondeProfile, error) {
	if missingLimit <= 0 {
		missingLimit = DefaultMissingValueLimit
	}

	lines := strings.Split(strings.ReplaceAll(r.DataBlock, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return SondeProfile{}, fmt.Errorf("%w: station %q has no data rows", ErrInsufficientLevels, r.Station)
	}

	col := 0
	if firstField(lines[0]) == durationHeader {
		col = 1
	}

	var pressure, vmr []float64
	missing := 0
	// The final line is a trailer or the empty tail of a terminated block; never a row.
	for _, line := range lines[1 : len(lines)-1] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, partial, ok := parseRow(line, col)
		if !ok {
			missing++
			if missing >= missingLimit {
				return SondeProfile{}, fmt.Errorf("%w: station %q, %d unparseable rows",
					ErrTooManyMissingValues, r.Station, missing)
			}
			continue
		}
		if p <= 0 || partial <= 0 {
			continue
		}
		if n := len(pressure); n > 0 && pressure[n-1] == p {
			continue
		}
		pressure = append(pressure, p)
		vmr = append(vmr, partial/(p*partialPressureScale)*ppb)
	}

	if len(pressure) < 2 {
		return SondeProfile{}, fmt.Errorf("%w: station %q kept %d rows", ErrInsufficientLevels, r.Station, len(pressure))
	}
	if !strictlyMonotonic(pressure) {
		return SondeProfile{}, fmt.Errorf("%w: station %q launch %s", ErrNonMonotonic, r.Station, r.LaunchTime.UTC().Format("2006-01-02T15:04Z"))
	}

	return SondeProfile{
		Station:    r.Station,
		LaunchTime: r.LaunchTime,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Pressure:   pressure,
		VMR:        vmr,
	}, nil
}

func firstField(line string) string {
	field, _, _ := strings.Cut(line, ",")
	return strings.TrimSpace(field)
}

// parseRow reads the pressure and ozone partial pressure columns starting at col.
func parseRow(line string, col int) (pressure, partial float64, ok bool) {
	fields := strings.Split(line, ",")
	if len(fields) < col+2 {
		return 0, 0, false
	}
	pressure, ok = parseFinite(fields[col])
	if !ok {
		return 0, 0, false
	}
	partial, ok = parseFinite(fields[col+1])
	if !ok {
		return 0, 0, false
	}
	return pressure, partial, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func strictlyMonotonic(xs []float64) bool {
	if len(xs) < 2 {
		return true
	}
	ascending := xs[1] > xs[0]
	for i := 1; i < len(xs); i++ {
		if ascending && xs[i] <= xs[i-1] {
			return false
		}
		if !ascending && xs[i] >= xs[i-1] {
			return false
		}
	}
	return true
}

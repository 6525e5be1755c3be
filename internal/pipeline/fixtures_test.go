package pipeline_test

import (
	"fmt"
	"strings"
	"time"

	"github.com/ctessum/sparse"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

var testDay = time.Date(2020, time.July, 14, 0, 0, 0, 0, time.UTC)

var sondeLevels = []float64{1000, 950, 900, 850, 700, 500, 400, 300, 200, 150, 100, 70, 50, 30, 20, 10}

// sondeBlock renders a WOUDC data block with a constant mixing ratio in ppb.
func sondeBlock(vmrPPB float64) string {
	var b strings.Builder
	b.WriteString("Pressure,O3PartialPressure,Temperature\r\n")
	for _, p := range sondeLevels {
		partial := vmrPPB * p * 1e5 / 1e9
		fmt.Fprintf(&b, "%g,%g,-20.0\r\n", p, partial)
	}
	return b.String()
}

func sondeAt(station string, lat, lon float64, hour int) domain.SondeReport {
	return domain.SondeReport{
		Station:    station,
		LaunchTime: testDay.Add(time.Duration(hour) * time.Hour),
		Latitude:   lat,
		Longitude:  lon,
		DataBlock:  sondeBlock(50),
	}
}

func identityKernel(n int) *sparse.DenseArray {
	k := sparse.ZerosDense(n, n)
	for i := 0; i < n; i++ {
		k.Set(1, i, i)
	}
	return k
}

// soundingAt builds a surface-first sounding with constant ozone in ppb.
func soundingAt(lat, lon, hour, ozonePPB float64) domain.SatelliteSounding {
	pressure := []float64{1000, 800, 600, 400, 200, 100, 50, 10}
	n := len(pressure)
	ozone := make([]float64, n)
	apriori := make([]float64, n)
	for i := range ozone {
		ozone[i] = ozonePPB
		apriori[i] = 52
	}
	return domain.SatelliteSounding{
		Date:      testDay,
		Hour:      hour,
		Latitude:  lat,
		Longitude: lon,
		Pressure:  pressure,
		Ozone:     ozone,
		Apriori:   apriori,
		Kernel:    identityKernel(n),
	}
}

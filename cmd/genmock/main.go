// Command genmock writes synthetic TROPESS lite day files and a WOUDC ozonesonde
// dump for local runs and demos. Sonde launches are run through the domain
// cleaning step so the generated data is known to survive the pipeline.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -input data/mock/tropess \
//	  -dumps data/mock/woudc \
//	  -dataset TROPESS-CRIS -start 2020-07-01 -days 14 -units None
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/ctessum/sparse"

	"github.com/couchcryptid/sonde-colocation/internal/adapter/tropess"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/woudc"
	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// productLevels are the TROPESS retrieval levels in hPa, surface first.
var productLevels = []float64{
	1000, 908.5, 825.4, 749.9, 681.3, 619, 562.3, 510.9, 464.2, 421.7, 383.1, 348.1, 316.2,
	287.3, 261, 215.4, 177.8, 146.8, 121.2, 100, 82.5, 56.2, 31.6, 17.8, 10, 0.1,
}

var sondeLevels = []float64{
	1000, 950, 900, 850, 800, 750, 700, 650, 600, 500, 400, 300, 250, 200, 150, 100, 70, 50, 30, 20, 15, 10, 7,
}

type station struct {
	id        string
	lat, lon  float64
	surfaceHP float64
}

var stations = []station{
	{id: "HIL", lat: 19.72, lon: -155.05, surfaceHP: 1000},
	{id: "BRW", lat: 71.32, lon: -156.61, surfaceHP: 1000},
	{id: "BLD", lat: 40.0, lon: -105.25, surfaceHP: 840},
	{id: "LDR", lat: -45.04, lon: 169.68, surfaceHP: 960},
	{id: "SYO", lat: -69.0, lon: 39.58, surfaceHP: 985},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	inputDir := flag.String("input", "", "root directory for satellite day files")
	dumpDir := flag.String("dumps", "", "directory for the sonde dump")
	dataset := flag.String("dataset", tropess.DatasetCRIS, "satellite dataset layout to write")
	startStr := flag.String("start", "2020-07-01", "first day (YYYY-MM-DD)")
	days := flag.Int("days", 7, "number of days to generate")
	units := flag.String("units", "None", "units of the stored satellite ozone (None, ppb, ppm)")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *inputDir == "" || *dumpDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -input, -dumps")
	}
	if *days < 1 {
		return fmt.Errorf("-days must be positive, got %d", *days)
	}
	ds, err := tropess.LookupDataset(*dataset)
	if err != nil {
		return err
	}
	u, err := domain.ParseOzoneUnits(*units)
	if err != nil {
		return err
	}
	factor, err := u.PPBFactor()
	if err != nil {
		return err
	}
	start, err := time.Parse(time.DateOnly, *startStr)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x5eed))
	var (
		reports  []domain.SondeReport
		written  int
		rejected int
	)
	for d := 0; d < *days; d++ {
		day := start.AddDate(0, 0, d)
		var records []tropess.Record
		for _, st := range stations {
			launch := day.Add(time.Duration(10*60+rng.IntN(240)) * time.Minute)
			r := launchReport(st, launch, rng)
			if _, err := domain.CleanSondeReport(r, domain.DefaultMissingValueLimit); err != nil {
				return fmt.Errorf("generated sonde %s %s: %w", st.id, day.Format(time.DateOnly), err)
			}
			reports = append(reports, r)

			for i := 0; i < 3; i++ {
				rec := overpass(st, day, domain.LaunchHour(launch), factor, rng)
				if rec.Quality == 0 {
					rejected++
				}
				records = append(records, rec)
			}
		}
		path := ds.DayPath(*inputDir, day)
		if err := tropess.WriteFile(path, len(productLevels), records); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written += len(records)
		log.Printf("Wrote %d soundings to %s", len(records), path)
	}

	dump := filepath.Join(*dumpDir, fmt.Sprintf("ozonesonde_%s_%d.json.gz", start.Format("20060102"), *days))
	if err := woudc.WriteDump(dump, reports); err != nil {
		return err
	}
	log.Printf("Wrote %d sonde launches to %s", len(reports), dump)

	fmt.Printf("\n=== %s mock data ===\n", ds.Name)
	fmt.Printf("Days:              %d\n", *days)
	fmt.Printf("Stations:          %d\n", len(stations))
	fmt.Printf("Soundings:         %d (%d quality-screened out)\n", written, rejected)
	fmt.Printf("Sonde launches:    %d\n", len(reports))
	return nil
}

// ozonePPB is a smooth mid-latitude climatology with a stratospheric peak near 10 hPa.
func ozonePPB(p, lat float64) float64 {
	x := math.Log(p / 10)
	peak := 7000 + 1500*math.Cos(lat*math.Pi/180)
	return 30 + peak*math.Exp(-x*x/2)
}

func launchReport(st station, launch time.Time, rng *rand.Rand) domain.SondeReport {
	block := "Pressure,O3PartialPressure,Temperature\r\n"
	for _, p := range sondeLevels {
		if p > st.surfaceHP {
			continue
		}
		vmr := ozonePPB(p, st.lat) * (1 + 0.03*rng.NormFloat64())
		partial := vmr * p * 1e5 / 1e9
		block += fmt.Sprintf("%g,%.4f,%.1f\r\n", p, partial, -56.5+0.065*p)
	}
	return domain.SondeReport{
		Station:    st.id,
		LaunchTime: launch,
		Latitude:   st.lat,
		Longitude:  st.lon,
		DataBlock:  block,
	}
}

// overpass is a sounding within about a degree of st near the launch hour, in
// product units. One in ten fails the quality screen.
func overpass(st station, day time.Time, hour, factor float64, rng *rand.Rand) tropess.Record {
	var pressure []float64
	for _, p := range productLevels {
		if p <= st.surfaceHP {
			pressure = append(pressure, p)
		}
	}
	n := len(pressure)
	lat := st.lat + rng.Float64()*2 - 1
	lon := st.lon + rng.Float64()*2 - 1
	s := domain.SatelliteSounding{
		Date:      day,
		Hour:      math.Mod(hour+rng.Float64()*4-2+24, 24),
		Latitude:  lat,
		Longitude: lon,
		Pressure:  pressure,
		Ozone:     make([]float64, n),
		Apriori:   make([]float64, n),
		Kernel:    sparse.ZerosDense(n, n),
	}
	bias := 1 + 0.05*rng.NormFloat64()
	for i, p := range pressure {
		truth := ozonePPB(p, lat)
		s.Ozone[i] = truth * bias / factor
		s.Apriori[i] = truth * 0.9 / factor
		s.Kernel.Set(0.7, i, i)
		if i > 0 {
			s.Kernel.Set(0.1, i, i-1)
		}
		if i < n-1 {
			s.Kernel.Set(0.1, i, i+1)
		}
	}
	quality := int32(1)
	if rng.IntN(10) == 0 {
		quality = 0
	}
	return tropess.Record{Sounding: s, Quality: quality}
}

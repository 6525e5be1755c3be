package tropess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
	"github.com/couchcryptid/sonde-colocation/internal/observability"
)

// Variable names in a TROPESS lite product.
const (
	varPressure   = "Pressure"
	varSpecies    = "Species"
	varApriori    = "ConstraintVector"
	varKernel     = "AveragingKernel"
	varLatitude   = "Latitude"
	varLongitude  = "Longitude"
	varDate       = "YYYYMMDD"
	varHour       = "UT_Hour"
	varQuality    = "Quality"
	fillThreshold = -999.0
)

// Reader loads soundings from TROPESS lite day files under a root directory.
// Files must be netCDF classic or 64-bit offset; convert netCDF-4 products with
// `nccopy -k classic` first.
type Reader struct {
	inputDir string
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewReader creates a Reader rooted at inputDir.
func NewReader(inputDir string, logger *slog.Logger, metrics *observability.Metrics) *Reader {
	return &Reader{inputDir: inputDir, logger: logger, metrics: metrics}
}

// ReadSoundings returns the quality-screened soundings of every day in [start, end],
// with ozone and apriori converted to ppb. Days without a readable file are skipped.
func (r *Reader) ReadSoundings(ctx context.Context, dataset string, start, end time.Time, units domain.OzoneUnits) ([]domain.SatelliteSounding, error) {
	ds, err := LookupDataset(dataset)
	if err != nil {
		return nil, err
	}
	factor, err := units.PPBFactor()
	if err != nil {
		return nil, err
	}

	var soundings []domain.SatelliteSounding
	first := midnight(start)
	last := midnight(end)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := ds.DayPath(r.inputDir, day)
		daily, err := ReadFile(path, day, factor)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.metrics.DayFiles.WithLabelValues("missing").Inc()
			r.logger.Info("satellite day file missing, skipping", "dataset", ds.Name, "day", day.Format(time.DateOnly))
			continue
		case err != nil:
			r.metrics.DayFiles.WithLabelValues("error").Inc()
			r.logger.Info("satellite day file unreadable, skipping", "dataset", ds.Name, "path", path, "error", err)
			continue
		}
		r.metrics.DayFiles.WithLabelValues("read").Inc()
		r.logger.Debug("satellite day file read", "day", day.Format(time.DateOnly), "soundings", len(daily))
		soundings = append(soundings, daily...)
	}
	return soundings, nil
}

// ReadFile decodes one day file. Records with Quality <= 0 are dropped, as are
// levels whose pressure is a fill value. Ozone and apriori are multiplied by factor.
func ReadFile(path string, day time.Time, factor float64) ([]domain.SatelliteSounding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only

	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	p, err := readProduct(nc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p.soundings(midnight(day), factor), nil
}

// product holds the raw variables of a day file, flattened row-major.
type product struct {
	targets, levels int

	pressure, species, apriori, kernel []float64
	lat, lon, date, hour, quality      []float64
}

func readProduct(nc *cdf.File) (product, error) {
	var p product
	dims := nc.Header.Lengths(varPressure)
	if len(dims) != 2 {
		return p, fmt.Errorf("variable %s: want 2 dimensions, got %v", varPressure, dims)
	}
	p.targets, p.levels = dims[0], dims[1]

	vars := []struct {
		name string
		dst  *[]float64
		size int
	}{
		{varPressure, &p.pressure, p.targets * p.levels},
		{varSpecies, &p.species, p.targets * p.levels},
		{varApriori, &p.apriori, p.targets * p.levels},
		{varKernel, &p.kernel, p.targets * p.levels * p.levels},
		{varLatitude, &p.lat, p.targets},
		{varLongitude, &p.lon, p.targets},
		{varDate, &p.date, p.targets},
		{varHour, &p.hour, p.targets},
		{varQuality, &p.quality, p.targets},
	}
	for _, v := range vars {
		vals, err := readVariable(nc, v.name)
		if err != nil {
			return p, err
		}
		if len(vals) != v.size {
			return p, fmt.Errorf("variable %s: %d values, want %d", v.name, len(vals), v.size)
		}
		*v.dst = vals
	}
	return p, nil
}

func readVariable(nc *cdf.File, name string) ([]float64, error) {
	if len(nc.Header.Lengths(name)) == 0 {
		return nil, fmt.Errorf("variable %s not in file", name)
	}
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read variable %s: %w", name, err)
	}
	return toFloat64(name, buf)
}

func toFloat64(name string, buf interface{}) ([]float64, error) {
	switch v := buf.(type) {
	case []float64:
		return v, nil
	case []float32:
		return convert(v), nil
	case []int32:
		return convert(v), nil
	case []int16:
		return convert(v), nil
	case []int8:
		return convert(v), nil
	case []uint8:
		return convert(v), nil
	default:
		return nil, fmt.Errorf("variable %s: unsupported type %T", name, buf)
	}
}

func convert[T float32 | int32 | int16 | int8 | uint8](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func (p product) soundings(day time.Time, factor float64) []domain.SatelliteSounding {
	var out []domain.SatelliteSounding
	for t := 0; t < p.targets; t++ {
		if !(p.quality[t] > 0) {
			continue
		}
		row := t * p.levels
		var keep []int
		for l := 0; l < p.levels; l++ {
			if p.pressure[row+l] > fillThreshold {
				keep = append(keep, l)
			}
		}
		if len(keep) < 2 {
			continue
		}

		n := len(keep)
		s := domain.SatelliteSounding{
			Date:      recordDate(p.date[t], day),
			Hour:      p.hour[t],
			Latitude:  p.lat[t],
			Longitude: p.lon[t],
			Pressure:  make([]float64, n),
			Ozone:     make([]float64, n),
			Apriori:   make([]float64, n),
			Kernel:    sparse.ZerosDense(n, n),
		}
		block := t * p.levels * p.levels
		for i, li := range keep {
			s.Pressure[i] = p.pressure[row+li]
			s.Ozone[i] = p.species[row+li] * factor
			s.Apriori[i] = p.apriori[row+li] * factor
			for j, lj := range keep {
				s.Kernel.Set(p.kernel[block+li*p.levels+lj], i, j)
			}
		}
		out = append(out, s)
	}
	return out
}

// recordDate decodes a YYYYMMDD value, falling back to the file day.
func recordDate(v float64, fallback time.Time) time.Time {
	n := int(v)
	y, m, d := n/10000, (n/100)%100, n%100
	if y < 1900 || m < 1 || m > 12 || d < 1 || d > 31 {
		return fallback
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

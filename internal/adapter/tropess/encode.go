package tropess

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// Record is one sounding as stored in a product file, with ozone and apriori in
// product units.
type Record struct {
	Sounding domain.SatelliteSounding
	Quality  int32
}

// WriteFile encodes records as a TROPESS lite day file with levels pressure levels
// per target. Soundings with fewer levels are padded with leading fill levels, as
// the lite products are.
func WriteFile(path string, levels int, records []Record) (err error) {
	if len(records) == 0 {
		return errors.New("no records to write")
	}
	for i, r := range records {
		if err := r.Sounding.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if len(r.Sounding.Pressure) > levels {
			return fmt.Errorf("record %d: %d levels exceed %d", i, len(r.Sounding.Pressure), levels)
		}
	}

	n := len(records)
	pressure := make([]float64, n*levels)
	species := make([]float64, n*levels)
	apriori := make([]float64, n*levels)
	kernel := make([]float64, n*levels*levels)
	lat := make([]float64, n)
	lon := make([]float64, n)
	date := make([]int32, n)
	hour := make([]float64, n)
	quality := make([]int32, n)

	for t, r := range records {
		s := r.Sounding
		pad := levels - len(s.Pressure)
		row := t * levels
		for l := 0; l < pad; l++ {
			pressure[row+l] = fillThreshold
			species[row+l] = fillThreshold
			apriori[row+l] = fillThreshold
		}
		block := t * levels * levels
		for i := range s.Pressure {
			pressure[row+pad+i] = s.Pressure[i]
			species[row+pad+i] = s.Ozone[i]
			apriori[row+pad+i] = s.Apriori[i]
			for j := range s.Pressure {
				kernel[block+(pad+i)*levels+pad+j] = s.Kernel.Get(i, j)
			}
		}
		lat[t] = s.Latitude
		lon[t] = s.Longitude
		date[t] = int32(s.Date.Year()*10000 + int(s.Date.Month())*100 + s.Date.Day()) //nolint:gosec // calendar dates fit
		hour[t] = s.Hour
		quality[t] = r.Quality
	}

	h := cdf.NewHeader([]string{"target", "level"}, []int{n, levels})
	h.AddAttribute("", "title", "TROPESS lite ozone product")
	h.AddVariable(varPressure, []string{"target", "level"}, []float64{0})
	h.AddAttribute(varPressure, "units", "hPa")
	h.AddVariable(varSpecies, []string{"target", "level"}, []float64{0})
	h.AddVariable(varApriori, []string{"target", "level"}, []float64{0})
	h.AddVariable(varKernel, []string{"target", "level", "level"}, []float64{0})
	h.AddVariable(varLatitude, []string{"target"}, []float64{0})
	h.AddVariable(varLongitude, []string{"target"}, []float64{0})
	h.AddVariable(varDate, []string{"target"}, []int32{0})
	h.AddVariable(varHour, []string{"target"}, []float64{0})
	h.AddVariable(varQuality, []string{"target"}, []int32{0})
	h.Define()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create product dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create product file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("create netcdf: %w", err)
	}
	vars := []struct {
		name string
		data interface{}
	}{
		{varPressure, pressure},
		{varSpecies, species},
		{varApriori, apriori},
		{varKernel, kernel},
		{varLatitude, lat},
		{varLongitude, lon},
		{varDate, date},
		{varHour, hour},
		{varQuality, quality},
	}
	for _, v := range vars {
		if _, err := nc.Writer(v.name, nil, nil).Write(v.data); err != nil {
			return fmt.Errorf("write variable %s: %w", v.name, err)
		}
	}
	return nil
}

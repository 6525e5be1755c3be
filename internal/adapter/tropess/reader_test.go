package tropess

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
	"github.com/couchcryptid/sonde-colocation/internal/observability"
)

var day1 = time.Date(2020, time.July, 1, 0, 0, 0, 0, time.UTC)

func testReader(dir string) *Reader {
	return NewReader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

// moleFractionSounding builds a surface-first sounding in mole fraction units with a
// kernel whose entries encode their position.
func moleFractionSounding(day time.Time, lat, lon, hour float64) domain.SatelliteSounding {
	pressure := []float64{1000, 700, 400, 100, 10}
	n := len(pressure)
	s := domain.SatelliteSounding{
		Date:      day,
		Hour:      hour,
		Latitude:  lat,
		Longitude: lon,
		Pressure:  pressure,
		Ozone:     make([]float64, n),
		Apriori:   make([]float64, n),
		Kernel:    sparse.ZerosDense(n, n),
	}
	for i := range pressure {
		s.Ozone[i] = 50e-9
		s.Apriori[i] = 40e-9
		for j := range pressure {
			s.Kernel.Set(float64(i*10+j), i, j)
		}
	}
	return s
}

func writeDay(t *testing.T, dir string, dataset string, day time.Time, records ...Record) {
	t.Helper()
	ds, err := LookupDataset(dataset)
	require.NoError(t, err)
	require.NoError(t, WriteFile(ds.DayPath(dir, day), 8, records))
}

func TestReader_ReadSoundings(t *testing.T) {
	dir := t.TempDir()
	day3 := day1.AddDate(0, 0, 2)
	writeDay(t, dir, DatasetCRIS, day1,
		Record{Sounding: moleFractionSounding(day1, 19.5, -155.5, 10.5), Quality: 1},
		Record{Sounding: moleFractionSounding(day1, 40, -105, 11), Quality: 0},
	)
	writeDay(t, dir, DatasetCRIS, day3,
		Record{Sounding: moleFractionSounding(day3, -45, 170, 2.25), Quality: 1},
	)

	r := testReader(dir)
	got, err := r.ReadSoundings(context.Background(), "tropess-cris", day1, day3, domain.UnitsNone)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, day1, first.Date)
	assert.Equal(t, 10.5, first.Hour)
	assert.Equal(t, 19.5, first.Latitude)
	assert.Equal(t, -155.5, first.Longitude)
	assert.Equal(t, []float64{1000, 700, 400, 100, 10}, first.Pressure)
	for i := range first.Ozone {
		assert.InDelta(t, 50, first.Ozone[i], 1e-9)
		assert.InDelta(t, 40, first.Apriori[i], 1e-9)
	}
	require.NoError(t, first.Validate())
	assert.Equal(t, 0.0, first.Kernel.Get(0, 0))
	assert.Equal(t, 12.0, first.Kernel.Get(1, 2))
	assert.Equal(t, 44.0, first.Kernel.Get(4, 4))

	assert.Equal(t, day3, got[1].Date)
	assert.Equal(t, -45.0, got[1].Latitude)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.metrics.DayFiles.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.DayFiles.WithLabelValues("missing")))
}

func TestReader_UnitsScaling(t *testing.T) {
	dir := t.TempDir()
	s := moleFractionSounding(day1, 0, 0, 12)
	for i := range s.Ozone {
		s.Ozone[i] = 0.05 // ppm
		s.Apriori[i] = 0.04
	}
	writeDay(t, dir, DatasetAIRSOMI, day1, Record{Sounding: s, Quality: 3})

	got, err := testReader(dir).ReadSoundings(context.Background(), DatasetAIRSOMI, day1, day1, domain.UnitsPPM)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 50, got[0].Ozone[0], 1e-9)
	assert.InDelta(t, 40, got[0].Apriori[0], 1e-9)
}

func TestReader_UnsupportedDataset(t *testing.T) {
	_, err := testReader(t.TempDir()).ReadSoundings(context.Background(), "OMI-NADIR", day1, day1, domain.UnitsPPB)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedDataset))
}

func TestReader_UnsupportedUnits(t *testing.T) {
	_, err := testReader(t.TempDir()).ReadSoundings(context.Background(), DatasetCRIS, day1, day1, domain.OzoneUnits("DU"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedUnits))
}

func TestReader_UnreadableFileSkipped(t *testing.T) {
	dir := t.TempDir()
	ds, err := LookupDataset(DatasetCRIS)
	require.NoError(t, err)
	path := ds.DayPath(dir, day1)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("not a netcdf file"), 0o600))

	r := testReader(dir)
	got, err := r.ReadSoundings(context.Background(), DatasetCRIS, day1, day1, domain.UnitsPPB)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.DayFiles.WithLabelValues("error")))
}

func TestReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testReader(t.TempDir()).ReadSoundings(ctx, DatasetCRIS, day1, day1, domain.UnitsPPB)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "none.nc"), day1, 1)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWriteFile_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nc")
	assert.Error(t, WriteFile(path, 8, nil))

	s := moleFractionSounding(day1, 0, 0, 0)
	assert.Error(t, WriteFile(path, 3, []Record{{Sounding: s, Quality: 1}}))

	s.Ozone = s.Ozone[:2]
	assert.Error(t, WriteFile(path, 8, []Record{{Sounding: s, Quality: 1}}))
}

func TestDataset_DayPath(t *testing.T) {
	day := time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC)

	cris, err := LookupDataset("TROPESS-CRIS")
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join("root", "2021", "03", "05", "batch-01", "L2_Products_Lite", "CRIS_L2-O3-0_2021_03_05_F01_1.17_Litev01_Day_Night.nc"),
		cris.DayPath("root", day))

	airs, err := LookupDataset("Tropess-AirsOmi")
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join("root", "2021", "03", "05", "L2_Products_Lite", "AIRS_OMI_ATrain_L2-O3_2021_03_05_F01_1.17_Litev01.nc"),
		airs.DayPath("root", day))

	_, err = LookupDataset("TROPESS-OMI")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), DatasetAIRSOMI))
}

func TestRecordDate(t *testing.T) {
	fallback := day1
	assert.Equal(t, time.Date(2020, time.July, 14, 0, 0, 0, 0, time.UTC), recordDate(20200714, fallback))
	assert.Equal(t, fallback, recordDate(0, fallback))
	assert.Equal(t, fallback, recordDate(20201399, fallback))
}

package woudc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// DumpSource serves sonde reports from GeoJSON feature collections saved on disk,
// either plain (*.json, *.geojson) or gzip-compressed (*.json.gz, *.geojson.gz).
type DumpSource struct {
	dir    string
	logger *slog.Logger
}

// NewDumpSource reads dumps from dir.
func NewDumpSource(dir string, logger *slog.Logger) *DumpSource {
	return &DumpSource{dir: dir, logger: logger}
}

func (d *DumpSource) FetchSondeReports(ctx context.Context, start, end time.Time, sites []string) ([]domain.SondeReport, error) {
	files, err := d.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no sonde dumps in %s", d.dir)
	}

	wanted := siteSet(sites)
	var reports []domain.SondeReport
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fc, err := readDump(path)
		if err != nil {
			return nil, err
		}
		for _, r := range toReports(fc.Features, d.logger.With("file", filepath.Base(path))) {
			if !inRange(r.LaunchTime, start, end) {
				continue
			}
			if wanted != nil && !wanted[r.Station] {
				continue
			}
			reports = append(reports, r)
		}
	}
	d.logger.Debug("sonde reports loaded from dumps", "files", len(files), "count", len(reports))
	return reports, nil
}

func (d *DumpSource) files() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read sonde dump dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isDumpName(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(d.dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

func isDumpName(name string) bool {
	name = strings.TrimSuffix(name, ".gz")
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".geojson")
}

func readDump(path string) (featureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return featureCollection{}, fmt.Errorf("open sonde dump: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return featureCollection{}, fmt.Errorf("gzip %s: %w", filepath.Base(path), err)
		}
		defer gz.Close() //nolint:errcheck // read-only
		r = gz
	}

	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return featureCollection{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return fc, nil
}

// WriteDump saves reports as a GeoJSON feature collection readable by DumpSource.
// A path ending in .gz is gzip-compressed.
func WriteDump(path string, reports []domain.SondeReport) (err error) {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(reports))}
	for _, r := range reports {
		fc.Features = append(fc.Features, fromReport(r))
	}
	fc.NumberMatched = len(fc.Features)
	fc.NumberReturned = len(fc.Features)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sonde dump: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return json.NewEncoder(f).Encode(fc)
	}
	gz := pgzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(fc); err != nil {
		gz.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("encode sonde dump: %w", err)
	}
	return gz.Close()
}

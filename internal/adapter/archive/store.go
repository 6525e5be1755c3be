package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// ErrArtifactExists is returned by Save when the artifact is already on disk.
var ErrArtifactExists = errors.New("artifact already exists")

const extension = ".parquet"

// File metadata keys.
const (
	metaDataset = "dataset"
	metaStart   = "start_date"
	metaEnd     = "end_date"
	metaGrid    = "pressure_grid"
)

// row is the on-disk layout of one comparison record.
type row struct {
	DifferenceProfilePercent      []float64 `parquet:"difference_profile_percent,list"`
	DifferenceProfileAbsolute     []float64 `parquet:"difference_profile_absolute,list"`
	DifferenceTropospherePercent  float64   `parquet:"difference_troposphere_percent"`
	DifferenceTroposphereAbsolute float64   `parquet:"difference_troposphere_absolute"`
	LatitudeColocation            float64   `parquet:"latitude_colocation"`
	TimeVector                    int64     `parquet:"time_vector,timestamp(millisecond)"`
	Station                       string    `parquet:"station"`
	DistanceKm                    float64   `parquet:"distance_km"`
	TimeDeltaHours                float64   `parquet:"time_delta_hours"`
}

func toRow(r domain.ComparisonRecord) row {
	return row{
		DifferenceProfilePercent:      r.DifferenceProfilePercent,
		DifferenceProfileAbsolute:     r.DifferenceProfileAbsolute,
		DifferenceTropospherePercent:  r.DifferenceTropospherePercent,
		DifferenceTroposphereAbsolute: r.DifferenceTroposphereAbsolute,
		LatitudeColocation:            r.Latitude,
		TimeVector:                    r.Timestamp.UnixMilli(),
		Station:                       r.Station,
		DistanceKm:                    r.DistanceKm,
		TimeDeltaHours:                r.TimeDeltaHours,
	}
}

func (r row) record() domain.ComparisonRecord {
	return domain.ComparisonRecord{
		DifferenceProfilePercent:      r.DifferenceProfilePercent,
		DifferenceProfileAbsolute:     r.DifferenceProfileAbsolute,
		DifferenceTropospherePercent:  r.DifferenceTropospherePercent,
		DifferenceTroposphereAbsolute: r.DifferenceTroposphereAbsolute,
		Latitude:                      r.LatitudeColocation,
		Timestamp:                     time.UnixMilli(r.TimeVector).UTC(),
		Station:                       r.Station,
		DistanceKm:                    r.DistanceKm,
		TimeDeltaHours:                r.TimeDeltaHours,
	}
}

// Artifact is a colocation result file read back from disk.
type Artifact struct {
	Path    string
	Meta    domain.ArtifactMeta
	Records []domain.ComparisonRecord
}

// Store writes and reads colocation artifacts in a directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir. The directory is created on first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// ArtifactName returns the file name of a run's artifact. Months and days are not
// zero-padded.
func ArtifactName(meta domain.ArtifactMeta) string {
	return fmt.Sprintf("%s_sonde_colocation_%d_%d_%d_%d_%d_%d%s",
		meta.Dataset,
		meta.Start.Year(), int(meta.Start.Month()), meta.Start.Day(),
		meta.End.Year(), int(meta.End.Month()), meta.End.Day(),
		extension,
	)
}

// Path returns where the artifact for meta lives.
func (s *Store) Path(meta domain.ArtifactMeta) string {
	return filepath.Join(s.dir, ArtifactName(meta))
}

func (s *Store) Exists(_ context.Context, meta domain.ArtifactMeta) (bool, error) {
	_, err := os.Stat(s.Path(meta))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat artifact: %w", err)
	}
}

// Save writes records to a temporary file and links it into place, so readers never
// see a partial artifact. An existing artifact is never replaced.
func (s *Store) Save(ctx context.Context, meta domain.ArtifactMeta, records []domain.ComparisonRecord) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	final := s.Path(meta)

	tmp, err := os.CreateTemp(s.dir, "."+ArtifactName(meta)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // gone after a successful link

	if err := writeRows(tmp, meta, records); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Link(tmpPath, final); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrArtifactExists, final)
		}
		return "", fmt.Errorf("publish artifact: %w", err)
	}

	s.logger.Info("colocation artifact written", "path", final, "records", len(records))
	return final, nil
}

func writeRows(w io.Writer, meta domain.ArtifactMeta, records []domain.ComparisonRecord) error {
	pw := parquet.NewGenericWriter[row](w,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(metaDataset, meta.Dataset),
		parquet.KeyValueMetadata(metaStart, meta.Start.Format(time.DateOnly)),
		parquet.KeyValueMetadata(metaEnd, meta.End.Format(time.DateOnly)),
		parquet.KeyValueMetadata(metaGrid, formatGrid(meta.PressureGrid)),
	)
	rows := make([]row, len(records))
	for i, r := range records {
		rows[i] = toRow(r)
	}
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Load reads an artifact and its metadata.
func (s *Store) Load(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return Artifact{}, fmt.Errorf("parquet open %s: %w", filepath.Base(path), err)
	}

	meta, err := readMeta(pf)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	reader := parquet.NewGenericReader[row](pf)
	defer reader.Close() //nolint:errcheck // read-only

	records := make([]domain.ComparisonRecord, 0, reader.NumRows())
	for {
		buf := make([]row, 256)
		n, err := reader.Read(buf)
		for _, r := range buf[:n] {
			records = append(records, r.record())
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("read parquet rows: %w", err)
		}
	}
	return Artifact{Path: path, Meta: meta, Records: records}, nil
}

func readMeta(pf *parquet.File) (domain.ArtifactMeta, error) {
	var meta domain.ArtifactMeta
	var ok bool
	if meta.Dataset, ok = pf.Lookup(metaDataset); !ok {
		return meta, fmt.Errorf("missing %s metadata", metaDataset)
	}
	for _, d := range []struct {
		key string
		dst *time.Time
	}{{metaStart, &meta.Start}, {metaEnd, &meta.End}} {
		v, ok := pf.Lookup(d.key)
		if !ok {
			return meta, fmt.Errorf("missing %s metadata", d.key)
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return meta, fmt.Errorf("invalid %s metadata: %w", d.key, err)
		}
		*d.dst = t
	}
	grid, _ := pf.Lookup(metaGrid)
	g, err := parseGrid(grid)
	if err != nil {
		return meta, err
	}
	meta.PressureGrid = g
	return meta, nil
}

// List returns the artifacts in the store whose names start with prefix, sorted by name.
func (s *Store) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, extension) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

func formatGrid(grid []float64) string {
	parts := make([]string, len(grid))
	for i, p := range grid {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseGrid(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	grid := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s metadata: %w", metaGrid, err)
		}
		grid[i] = v
	}
	return grid, nil
}

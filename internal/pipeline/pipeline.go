package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
	"github.com/couchcryptid/sonde-colocation/internal/observability"
)

// SatelliteReader reads quality-screened soundings for every day in [start, end].
type SatelliteReader interface {
	ReadSoundings(ctx context.Context, dataset string, start, end time.Time, units domain.OzoneUnits) ([]domain.SatelliteSounding, error)
}

// SondeSource fetches raw ozonesonde reports launched in [start, end]. An empty
// sites slice means every station.
type SondeSource interface {
	FetchSondeReports(ctx context.Context, start, end time.Time, sites []string) ([]domain.SondeReport, error)
}

// Transformer turns one colocated pair and its cleaned sonde profile into a comparison record.
type Transformer interface {
	Transform(ctx context.Context, pair domain.ColocatedPair, sonde domain.SondeProfile) (domain.ComparisonRecord, error)
}

// ResultStore persists the records of a run as a single artifact.
type ResultStore interface {
	Exists(ctx context.Context, meta domain.ArtifactMeta) (bool, error)
	Save(ctx context.Context, meta domain.ArtifactMeta, records []domain.ComparisonRecord) (string, error)
}

// Publisher delivers accepted records to a downstream sink after the artifact is saved.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, meta domain.ArtifactMeta, records []domain.ComparisonRecord) error
}

// RunSummary reports what a run did.
type RunSummary struct {
	Dataset      string        `json:"dataset"`
	Soundings    int           `json:"soundings"`
	Sondes       int           `json:"sondes"`
	Pairs        int           `json:"pairs"`
	Accepted     int           `json:"accepted"`
	Rejected     int           `json:"rejected"`
	Failed       int           `json:"failed"`
	Skipped      bool          `json:"skipped"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	Grid              []float64
	MissingValueLimit int
	Workers           int
	Clock             clockwork.Clock
}

// Pipeline orchestrates extract, match, transform, store and publish for one run.
type Pipeline struct {
	reader      SatelliteReader
	sondes      SondeSource
	transformer Transformer
	store       ResultStore
	publishers  []Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool

	grid         []float64
	missingLimit int
	workers      int
}

// New creates a Pipeline with the given stages and observability.
func New(r SatelliteReader, s SondeSource, t Transformer, store ResultStore, publishers []Publisher,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	p := &Pipeline{
		reader:       r,
		sondes:       s,
		transformer:  t,
		store:        store,
		publishers:   publishers,
		logger:       logger,
		metrics:      metrics,
		clock:        opts.Clock,
		grid:         opts.Grid,
		missingLimit: opts.MissingValueLimit,
		workers:      opts.Workers,
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if len(p.grid) == 0 {
		p.grid = domain.DefaultGrid()
	}
	if p.missingLimit <= 0 {
		p.missingLimit = domain.DefaultMissingValueLimit
	}
	if p.workers <= 0 {
		p.workers = 1
	}
	return p
}

// CheckReadiness returns nil once a run is in progress or finished.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no colocation run has started yet")
	}
	return nil
}

// Run executes one colocation run. Fatal input errors are returned; per-pair failures
// and outliers are counted in the summary. When the artifact already exists the run
// is skipped before any input is read.
func (p *Pipeline) Run(ctx context.Context, params domain.RunParams) (RunSummary, error) {
	start := p.clock.Now()
	summary := RunSummary{Dataset: params.Dataset}

	if err := params.Validate(); err != nil {
		return summary, err
	}
	meta := params.Meta(p.grid)

	exists, err := p.store.Exists(ctx, meta)
	if err != nil {
		return summary, fmt.Errorf("check artifact: %w", err)
	}
	if exists {
		p.logger.Info("colocation artifact exists, skipping run",
			"dataset", params.Dataset,
			"start", params.Start.Format(time.DateOnly),
			"end", params.End.Format(time.DateOnly),
		)
		p.metrics.RunsSkipped.Inc()
		summary.Skipped = true
		return summary, nil
	}

	p.ready.Store(true)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.logger.Info("colocation run started",
		"dataset", params.Dataset,
		"start", params.Start.Format(time.DateOnly),
		"end", params.End.Format(time.DateOnly),
		"workers", p.workers,
	)

	soundings, err := p.reader.ReadSoundings(ctx, params.Dataset, params.Start, params.End, params.Units)
	if err != nil {
		return summary, fmt.Errorf("read satellite product: %w", err)
	}
	summary.Soundings = len(soundings)
	p.metrics.SoundingsRead.Add(float64(len(soundings)))

	reports, err := p.sondes.FetchSondeReports(ctx, params.Start, params.End, params.Sites)
	if err != nil {
		return summary, fmt.Errorf("fetch sonde reports: %w", err)
	}
	if len(reports) == 0 {
		return summary, fmt.Errorf("%w: %s to %s", domain.ErrNoSondeData,
			params.Start.Format(time.DateOnly), params.End.Format(time.DateOnly))
	}
	summary.Sondes = len(reports)
	p.metrics.SondesFetched.Add(float64(len(reports)))
	p.logger.Info("inputs loaded", "soundings", len(soundings), "sondes", len(reports))

	pairs, err := domain.Match(reports, soundings, params.Criteria())
	if err != nil {
		return summary, fmt.Errorf("match: %w", err)
	}
	summary.Pairs = len(pairs)
	p.metrics.PairsMatched.Add(float64(len(pairs)))

	results, err := p.transformAll(ctx, reports, pairs)
	if err != nil {
		return summary, err
	}

	records := make([]domain.ComparisonRecord, 0, len(pairs))
	for i, res := range results {
		pair := pairs[i]
		if res.err == nil {
			records = append(records, res.record)
			p.metrics.PairOutcomes.WithLabelValues("accepted").Inc()
			continue
		}
		switch domain.Classify(res.err) {
		case domain.FailureRejected:
			summary.Rejected++
			p.metrics.PairOutcomes.WithLabelValues("rejected").Inc()
			p.logger.Debug("pair rejected", "station", pair.Sonde.Station, "sounding", pair.SoundingIndex, "reason", res.err)
		case domain.FailurePerPair:
			summary.Failed++
			p.metrics.PairOutcomes.WithLabelValues("failed").Inc()
			p.logger.Warn("pair failed, skipping",
				"station", pair.Sonde.Station,
				"sonde", pair.SondeIndex,
				"sounding", pair.SoundingIndex,
				"error", res.err,
			)
		default:
			return summary, fmt.Errorf("sonde %d, sounding %d: %w", pair.SondeIndex, pair.SoundingIndex, res.err)
		}
	}
	summary.Accepted = len(records)

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	path, err := p.store.Save(ctx, meta, records)
	if err != nil {
		return summary, fmt.Errorf("save artifact: %w", err)
	}
	summary.ArtifactPath = path

	p.publish(ctx, meta, records)

	summary.Duration = p.clock.Since(start)
	p.metrics.RunDuration.Observe(summary.Duration.Seconds())
	p.logger.Info("colocation run complete",
		"artifact", path,
		"pairs", summary.Pairs,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)
	return summary, nil
}

type pairResult struct {
	record domain.ComparisonRecord
	err    error
}

// transformAll processes pairs on the worker pool. Each result lands in the slot of
// its pair, so the output order does not depend on scheduling.
func (p *Pipeline) transformAll(ctx context.Context, reports []domain.SondeReport, pairs []domain.ColocatedPair) ([]pairResult, error) {
	results := make([]pairResult, len(pairs))
	cleaned := newSondeCache(reports, p.missingLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			begin := p.clock.Now()
			defer func() { p.metrics.PairDuration.Observe(p.clock.Since(begin).Seconds()) }()

			pair := pairs[i]
			p.logger.Debug("pair matched",
				"station", pair.Sonde.Station,
				"sounding", pair.SoundingIndex,
				"distance_km", pair.DistanceKm,
				"time_delta_h", pair.TimeDeltaHours,
			)

			profile, err := cleaned.get(pair.SondeIndex)
			if err != nil {
				results[i] = pairResult{err: fmt.Errorf("clean sonde: %w", err)}
				return nil
			}
			rec, err := p.transformer.Transform(gctx, pair, profile)
			results[i] = pairResult{record: rec, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) publish(ctx context.Context, meta domain.ArtifactMeta, records []domain.ComparisonRecord) {
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, meta, records); err != nil {
			p.metrics.PublishErrors.WithLabelValues(pub.Name()).Inc()
			p.logger.Error("publish failed", "sink", pub.Name(), "records", len(records), "error", err)
			continue
		}
		p.metrics.RecordsPublished.WithLabelValues(pub.Name()).Add(float64(len(records)))
	}
}

// sondeCache cleans each sonde report at most once, on first use.
type sondeCache struct {
	reports  []domain.SondeReport
	limit    int
	once     []sync.Once
	profiles []domain.SondeProfile
	errs     []error
}

func newSondeCache(reports []domain.SondeReport, limit int) *sondeCache {
	return &sondeCache{
		reports:  reports,
		limit:    limit,
		once:     make([]sync.Once, len(reports)),
		profiles: make([]domain.SondeProfile, len(reports)),
		errs:     make([]error, len(reports)),
	}
}

func (c *sondeCache) get(i int) (domain.SondeProfile, error) {
	c.once[i].Do(func() {
		c.profiles[i], c.errs[i] = domain.CleanSondeReport(c.reports[i], c.limit)
	})
	return c.profiles[i], c.errs[i]
}

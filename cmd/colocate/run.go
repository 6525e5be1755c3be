package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/couchcryptid/sonde-colocation/internal/adapter/archive"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/clickhouse"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/sonde-colocation/internal/adapter/kafka"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/tropess"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/woudc"
	"github.com/couchcryptid/sonde-colocation/internal/domain"
	"github.com/couchcryptid/sonde-colocation/internal/pipeline"
)

type runCmd struct {
	Datasets         []string  `short:"d" required:"" help:"Satellite datasets, comma separated (TROPESS-CRIS, TROPESS-AIRSOMI)."`
	StartDate        time.Time `name:"start-date" short:"s" required:"" format:"2006-01-02" help:"First day of the analysis (yyyy-mm-dd)."`
	EndDate          time.Time `name:"end-date" short:"e" required:"" format:"2006-01-02" help:"Last day of the analysis, inclusive (yyyy-mm-dd)."`
	Input            string    `short:"i" required:"" type:"existingdir" help:"Directory holding the L2 satellite products."`
	Output           string    `short:"o" required:"" type:"path" help:"Directory the colocation artifacts are written to."`
	OzoneUnits       string    `name:"ozone-units" default:"None" help:"Units of the product ozone fields: None, ppb or ppm."`
	GAWLocations     string    `name:"gaw-locations" default:"all" help:"GAW station ids to compare with, comma separated, or all."`
	DistanceLocation float64   `name:"distance-location" required:"" help:"Maximum sonde to sounding distance in km."`
	DistanceTime     float64   `name:"distance-time" required:"" help:"Maximum sonde to sounding time difference in hours (exclusive)."`
}

// params builds the run parameters for one dataset.
func (c *runCmd) params(dataset string) (domain.RunParams, error) {
	ds, err := tropess.LookupDataset(dataset)
	if err != nil {
		return domain.RunParams{}, err
	}
	units, err := domain.ParseOzoneUnits(c.OzoneUnits)
	if err != nil {
		return domain.RunParams{}, err
	}
	p := domain.RunParams{
		Dataset:           ds.Name,
		Start:             dateOnly(c.StartDate),
		End:               dateOnly(c.EndDate),
		InputDir:          c.Input,
		OutputDir:         c.Output,
		Units:             units,
		Sites:             parseSites(c.GAWLocations),
		MaxDistanceKm:     c.DistanceLocation,
		MaxTimeDeltaHours: c.DistanceTime,
	}
	return p, p.Validate()
}

func (c *runCmd) Run(a *app) error {
	// Resolve every dataset before touching any input so a typo fails fast.
	runs := make([]domain.RunParams, 0, len(c.Datasets))
	for _, name := range c.Datasets {
		p, err := c.params(name)
		if err != nil {
			return err
		}
		runs = append(runs, p)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publishers, closeAll := a.publishers(ctx)
	defer closeAll()

	sondes, err := a.sondeSource()
	if err != nil {
		return err
	}

	cfg := a.cfg
	p := pipeline.New(
		tropess.NewReader(c.Input, a.logger, a.metrics),
		sondes,
		pipeline.NewTransformer(cfg.PressureGrid, cfg.AKLog, domain.CompareOptions{
			BoundMode:               cfg.ColumnBoundMode,
			OutlierThresholdPercent: cfg.OutlierThresholdPercent,
		}),
		archive.NewStore(c.Output, a.logger),
		publishers,
		a.logger,
		a.metrics,
		pipeline.Options{
			Grid:              cfg.PressureGrid,
			MissingValueLimit: cfg.MissingValueLimit,
			Workers:           cfg.Workers,
		},
	)

	history := &runLog{}
	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, a.metrics.Gatherer, history.status, a.logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	var runErr error
	for _, params := range runs {
		summary, err := p.Run(ctx, params)
		history.add(summary)
		if err != nil {
			runErr = fmt.Errorf("%s: %w", params.Dataset, err)
			break
		}
		printSummary(a, summary)
	}

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := a.metrics.Push(pushCtx, cfg.PushgatewayURL, strings.Join(c.Datasets, ",")); err != nil {
			a.logger.Error("metrics push failed", "error", err)
		}
	}
	return runErr
}

// sondeSource prefers local dumps when configured and caches either source.
func (a *app) sondeSource() (pipeline.SondeSource, error) {
	var src woudc.Source
	if a.cfg.SondeDumpDir != "" {
		src = woudc.NewDumpSource(a.cfg.SondeDumpDir, a.logger)
		a.logger.Info("reading sondes from local dumps", "dir", a.cfg.SondeDumpDir)
	} else {
		src = woudc.NewClient(a.cfg.WOUDCURL, a.cfg.WOUDCPageSize, a.cfg.WOUDCTimeout, a.logger, a.metrics)
		a.logger.Info("reading sondes from woudc", "url", a.cfg.WOUDCURL)
	}
	cached, err := woudc.NewCachedSource(src, a.cfg.SondeCacheSize, a.metrics)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// publishers opens the configured downstream sinks. A sink that cannot be reached
// is logged and left out; it never blocks the run.
func (a *app) publishers(ctx context.Context) ([]pipeline.Publisher, func()) {
	var (
		pubs    []pipeline.Publisher
		closers []func() error
	)
	if len(a.cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(a.cfg, a.logger)
		pubs = append(pubs, w)
		closers = append(closers, w.Close)
		a.logger.Info("kafka publisher enabled", "topic", a.cfg.KafkaTopic)
	}
	if a.cfg.ClickHouseAddr != "" {
		w, err := clickhouse.NewWriter(ctx, a.cfg, a.logger)
		if err != nil {
			a.logger.Error("clickhouse publisher disabled", "error", err)
		} else {
			pubs = append(pubs, w)
			closers = append(closers, w.Close)
			a.logger.Info("clickhouse publisher enabled", "table", a.cfg.ClickHouseTable)
		}
	}
	return pubs, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.logger.Error("publisher close error", "error", err)
			}
		}
	}
}

func printSummary(a *app, s pipeline.RunSummary) {
	if s.Skipped {
		fmt.Fprintf(a.out, "%s: artifact exists, skipped\n", s.Dataset)
		return
	}
	fmt.Fprintf(a.out, "%s: %d soundings, %d sondes, %d pairs, %d accepted, %d rejected, %d failed -> %s\n",
		s.Dataset, s.Soundings, s.Sondes, s.Pairs, s.Accepted, s.Rejected, s.Failed, s.ArtifactPath)
}

// parseSites turns the gaw-locations flag into a site filter; "all" means none.
func parseSites(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return nil
	}
	var sites []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" && !slices.Contains(sites, part) {
			sites = append(sites, part)
		}
	}
	return sites
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// runLog records run summaries for the status endpoint.
type runLog struct {
	mu   sync.Mutex
	runs []pipeline.RunSummary
}

func (l *runLog) add(s pipeline.RunSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, s)
}

func (l *runLog) status() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]pipeline.RunSummary{}, l.runs...)
}

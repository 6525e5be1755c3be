package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/couchcryptid/sonde-colocation/internal/config"
	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	dataset                         LowCardinality(String),
	station                         LowCardinality(String),
	time_vector                     DateTime64(3, 'UTC'),
	latitude_colocation             Float64,
	distance_km                     Float64,
	time_delta_hours                Float64,
	difference_troposphere_percent  Float64,
	difference_troposphere_absolute Float64,
	difference_profile_percent      Array(Float64),
	difference_profile_absolute     Array(Float64),
	run_start                       Date,
	run_end                         Date
) ENGINE = ReplacingMergeTree
ORDER BY (dataset, station, time_vector)`

// rowBatch is the part of driver.Batch the writer needs.
type rowBatch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// Writer inserts comparison records into a ClickHouse table.
// It implements pipeline.Publisher.
type Writer struct {
	table     string
	batchSize int
	prepare   func(ctx context.Context, query string) (rowBatch, error)
	close     func() error
	logger    *slog.Logger
}

// NewWriter connects to ClickHouse and makes sure the target table exists.
func NewWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Writer, error) {
	conn, err := ch.Open(&ch.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: ch.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Compression: &ch.Compression{
			Method: ch.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close() //nolint:errcheck,gosec // already failing
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	table := fmt.Sprintf("%s.%s", cfg.ClickHouseDatabase, cfg.ClickHouseTable)
	if err := conn.Exec(ctx, fmt.Sprintf(createTableSQL, table)); err != nil {
		conn.Close() //nolint:errcheck,gosec // already failing
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	return &Writer{
		table:     table,
		batchSize: cfg.BatchSize,
		prepare: func(ctx context.Context, query string) (rowBatch, error) {
			return conn.PrepareBatch(ctx, query)
		},
		close:  conn.Close,
		logger: logger,
	}, nil
}

func (w *Writer) Name() string { return "clickhouse" }

// Publish inserts records in batches of the configured size.
func (w *Writer) Publish(ctx context.Context, meta domain.ArtifactMeta, records []domain.ComparisonRecord) error {
	size := w.batchSize
	if size <= 0 {
		size = len(records)
	}
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		if err := w.insert(ctx, meta, records[start:end]); err != nil {
			return fmt.Errorf("insert records %d-%d: %w", start, end-1, err)
		}
		w.logger.Debug("clickhouse batch sent", "table", w.table, "rows", end-start)
	}
	return nil
}

func (w *Writer) insert(ctx context.Context, meta domain.ArtifactMeta, records []domain.ComparisonRecord) error {
	batch, err := w.prepare(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range records {
		if err := batch.Append(rowValues(meta, r)...); err != nil {
			batch.Abort() //nolint:errcheck,gosec // already failing
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// rowValues orders a record's columns as in the table definition.
func rowValues(meta domain.ArtifactMeta, r domain.ComparisonRecord) []any {
	return []any{
		meta.Dataset,
		r.Station,
		r.Timestamp.UTC(),
		r.Latitude,
		r.DistanceKm,
		r.TimeDeltaHours,
		r.DifferenceTropospherePercent,
		r.DifferenceTroposphereAbsolute,
		r.DifferenceProfilePercent,
		r.DifferenceProfileAbsolute,
		meta.Start,
		meta.End,
	}
}

func (w *Writer) Close() error {
	if w.close == nil {
		return nil
	}
	return w.close()
}

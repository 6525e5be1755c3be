package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	HTTPAddr        string // empty disables the health/metrics server

	// Colocation numerics.
	PressureGrid            []float64
	AKLog                   bool
	OutlierThresholdPercent float64
	MissingValueLimit       int
	ColumnBoundMode         domain.BoundMode
	Workers                 int

	// Sonde source.
	WOUDCURL       string
	WOUDCTimeout   time.Duration
	WOUDCPageSize  int
	SondeDumpDir   string
	SondeCacheSize int

	// Downstream publishers, each disabled when its address is empty.
	BatchSize          int
	BatchFlushInterval time.Duration
	KafkaBrokers       []string
	KafkaTopic         string
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseTable    string
	PushgatewayURL     string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	woudcTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("WOUDC_TIMEOUT", "30s"))
	if err != nil || woudcTimeout <= 0 {
		return nil, errors.New("invalid WOUDC_TIMEOUT")
	}

	grid, err := parseGrid(os.Getenv("PRESSURE_GRID"))
	if err != nil {
		return nil, err
	}

	akLog, err := strconv.ParseBool(sharedcfg.EnvOrDefault("AK_LOG", "true"))
	if err != nil {
		return nil, errors.New("invalid AK_LOG")
	}

	threshold, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("OUTLIER_THRESHOLD_PERCENT", "200"), 64)
	if err != nil || threshold <= 0 {
		return nil, errors.New("invalid OUTLIER_THRESHOLD_PERCENT")
	}

	boundMode, err := domain.ParseBoundMode(sharedcfg.EnvOrDefault("COLUMN_BOUND_MODE", string(domain.BoundByPressure)))
	if err != nil {
		return nil, fmt.Errorf("invalid COLUMN_BOUND_MODE: %w", err)
	}
	if err := domain.ValidateBands(grid, boundMode); err != nil {
		return nil, fmt.Errorf("invalid PRESSURE_GRID for COLUMN_BOUND_MODE=%s: %w", boundMode, err)
	}

	missingLimit, err := positiveInt("MISSING_VALUE_LIMIT", domain.DefaultMissingValueLimit)
	if err != nil {
		return nil, err
	}
	workers, err := positiveInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	pageSize, err := positiveInt("WOUDC_PAGE_SIZE", 500)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		HTTPAddr:        os.Getenv("HTTP_ADDR"),

		PressureGrid:            grid,
		AKLog:                   akLog,
		OutlierThresholdPercent: threshold,
		MissingValueLimit:       missingLimit,
		ColumnBoundMode:         boundMode,
		Workers:                 workers,

		WOUDCURL:       sharedcfg.EnvOrDefault("WOUDC_URL", "https://api.woudc.org"),
		WOUDCTimeout:   woudcTimeout,
		WOUDCPageSize:  pageSize,
		SondeDumpDir:   os.Getenv("SONDE_DUMP_DIR"),
		SondeCacheSize: parseCacheSize(),

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		KafkaBrokers:       brokers,
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "sonde-colocations"),
		ClickHouseAddr:     os.Getenv("CLICKHOUSE_ADDR"),
		ClickHouseDatabase: sharedcfg.EnvOrDefault("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUser:     sharedcfg.EnvOrDefault("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		ClickHouseTable:    sharedcfg.EnvOrDefault("CLICKHOUSE_TABLE", "sonde_colocations"),
		PushgatewayURL:     os.Getenv("PUSHGATEWAY_URL"),
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.ClickHouseAddr != "" && cfg.ClickHouseTable == "" {
		return nil, errors.New("CLICKHOUSE_TABLE is required when CLICKHOUSE_ADDR is set")
	}

	return cfg, nil
}

// parseGrid reads a comma-separated list of pressures in hPa; empty means the default grid.
func parseGrid(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return domain.DefaultGrid(), nil
	}
	parts := strings.Split(s, ",")
	grid := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PRESSURE_GRID value %q", part)
		}
		grid = append(grid, v)
	}
	if err := domain.ValidateGrid(grid); err != nil {
		return nil, fmt.Errorf("invalid PRESSURE_GRID: %w", err)
	}
	return grid, nil
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("SONDE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}

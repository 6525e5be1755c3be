package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.HTTPAddr)

	assert.Equal(t, domain.DefaultPressureGrid, cfg.PressureGrid)
	assert.True(t, cfg.AKLog)
	assert.Equal(t, 200.0, cfg.OutlierThresholdPercent)
	assert.Equal(t, 5, cfg.MissingValueLimit)
	assert.Equal(t, domain.BoundByPressure, cfg.ColumnBoundMode)
	assert.Equal(t, 4, cfg.Workers)

	assert.Equal(t, "https://api.woudc.org", cfg.WOUDCURL)
	assert.Equal(t, 30*time.Second, cfg.WOUDCTimeout)
	assert.Equal(t, 500, cfg.WOUDCPageSize)
	assert.Empty(t, cfg.SondeDumpDir)
	assert.Equal(t, 64, cfg.SondeCacheSize)

	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "sonde-colocations", cfg.KafkaTopic)
	assert.Empty(t, cfg.ClickHouseAddr)
	assert.Equal(t, "sonde_colocations", cfg.ClickHouseTable)
	assert.Empty(t, cfg.PushgatewayURL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("PRESSURE_GRID", "100, 300,500,1000")
	t.Setenv("AK_LOG", "false")
	t.Setenv("OUTLIER_THRESHOLD_PERCENT", "150")
	t.Setenv("MISSING_VALUE_LIMIT", "8")
	t.Setenv("COLUMN_BOUND_MODE", "Pressure")
	t.Setenv("WORKERS", "2")
	t.Setenv("WOUDC_URL", "http://localhost:5000")
	t.Setenv("WOUDC_TIMEOUT", "5s")
	t.Setenv("WOUDC_PAGE_SIZE", "100")
	t.Setenv("SONDE_DUMP_DIR", "/data/woudc")
	t.Setenv("SONDE_CACHE_SIZE", "16")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "colocations")
	t.Setenv("CLICKHOUSE_ADDR", "localhost:9000")
	t.Setenv("CLICKHOUSE_PASSWORD", "secret")
	t.Setenv("PUSHGATEWAY_URL", "http://localhost:9091")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []float64{100, 300, 500, 1000}, cfg.PressureGrid)
	assert.False(t, cfg.AKLog)
	assert.Equal(t, 150.0, cfg.OutlierThresholdPercent)
	assert.Equal(t, 8, cfg.MissingValueLimit)
	assert.Equal(t, domain.BoundByPressure, cfg.ColumnBoundMode)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "http://localhost:5000", cfg.WOUDCURL)
	assert.Equal(t, 5*time.Second, cfg.WOUDCTimeout)
	assert.Equal(t, 100, cfg.WOUDCPageSize)
	assert.Equal(t, "/data/woudc", cfg.SondeDumpDir)
	assert.Equal(t, 16, cfg.SondeCacheSize)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "colocations", cfg.KafkaTopic)
	assert.Equal(t, "localhost:9000", cfg.ClickHouseAddr)
	assert.Equal(t, "secret", cfg.ClickHousePassword)
	assert.Equal(t, "http://localhost:9091", cfg.PushgatewayURL)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"WOUDC_TIMEOUT":             "bad",
		"PRESSURE_GRID":             "1000,500,100",
		"AK_LOG":                    "sometimes",
		"OUTLIER_THRESHOLD_PERCENT": "-5",
		"COLUMN_BOUND_MODE":         "height",
		"MISSING_VALUE_LIMIT":       "0",
		"WORKERS":                   "many",
		"WOUDC_PAGE_SIZE":           "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_GridMustCoverEveryBand(t *testing.T) {
	t.Run("index mode on a short grid", func(t *testing.T) {
		t.Setenv("PRESSURE_GRID", "100,300,500,1000")
		t.Setenv("COLUMN_BOUND_MODE", "index")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PRESSURE_GRID")
		assert.ErrorIs(t, err, domain.ErrShapeMismatch)
	})

	t.Run("pressure mode without a polar bound", func(t *testing.T) {
		t.Setenv("PRESSURE_GRID", "10,100,200,300,350")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "polar")
	})

	t.Run("index mode on the default grid", func(t *testing.T) {
		t.Setenv("COLUMN_BOUND_MODE", "index")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, domain.BoundByIndex, cfg.ColumnBoundMode)
	})
}

func TestLoad_UnparseableGridValue(t *testing.T) {
	t.Setenv("PRESSURE_GRID", "100,abc")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRESSURE_GRID")
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("SONDE_CACHE_SIZE", "zero")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.SondeCacheSize)
}

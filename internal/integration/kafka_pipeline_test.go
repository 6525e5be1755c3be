//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/sonde-colocation/internal/adapter/archive"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/kafka"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/tropess"
	"github.com/couchcryptid/sonde-colocation/internal/adapter/woudc"
	"github.com/couchcryptid/sonde-colocation/internal/config"
	"github.com/couchcryptid/sonde-colocation/internal/domain"
	"github.com/couchcryptid/sonde-colocation/internal/observability"
	"github.com/couchcryptid/sonde-colocation/internal/pipeline"
)

const testTopic = "test-colocations"

var testDay = time.Date(2020, time.July, 14, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("sonde-colocation"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// publishedMessage is a record read back from the colocation topic.
type publishedMessage struct {
	Dataset string `json:"dataset"`
	domain.ComparisonRecord
	Key     string            `json:"-"`
	Headers map[string]string `json:"-"`
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from colocation topic")

	var pm publishedMessage
	require.NoError(t, json.Unmarshal(msg.Value, &pm))
	pm.Key = string(msg.Key)
	pm.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		pm.Headers[h.Key] = string(h.Value)
	}
	return pm
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaTopic:         testTopic,
		BatchSize:          2,
		BatchFlushInterval: 100 * time.Millisecond,
	}
}

// TestKafkaWriter verifies that comparison records round-trip through Kafka with
// their key and headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	meta := domain.ArtifactMeta{Dataset: tropess.DatasetCRIS, Start: testDay, End: testDay.AddDate(0, 0, 6)}
	records := []domain.ComparisonRecord{
		{
			DifferenceProfilePercent:     []float64{1, 2},
			DifferenceProfileAbsolute:    []float64{0.5, 1},
			DifferenceTropospherePercent: 3.5,
			Latitude:                     19.7,
			Timestamp:                    testDay.Add(17 * time.Hour),
			Station:                      "HIL",
		},
		{Station: "BRW", Latitude: 71.3, Timestamp: testDay.Add(20 * time.Hour)},
		{Station: "SYO", Latitude: -69, Timestamp: testDay.Add(22 * time.Hour)},
	}
	require.NoError(t, writer.Publish(ctx, meta, records))

	consumer := newConsumer(t, broker)
	first := readPublished(ctx, t, consumer)
	assert.Equal(t, "TROPESS-CRIS/HIL/2020-07-14T17:00:00Z", first.Key)
	assert.Equal(t, tropess.DatasetCRIS, first.Headers["dataset"])
	assert.Equal(t, "2020-07-14/2020-07-20", first.Headers["run_window"])
	assert.Equal(t, tropess.DatasetCRIS, first.Dataset)
	assert.Equal(t, []float64{1, 2}, first.DifferenceProfilePercent)
	assert.Equal(t, 3.5, first.DifferenceTropospherePercent)

	var stations []string
	for range 2 {
		stations = append(stations, readPublished(ctx, t, consumer).Station)
	}
	assert.ElementsMatch(t, []string{"BRW", "SYO"}, stations)
}

func sondeBlock(vmrPPB float64) string {
	var b strings.Builder
	b.WriteString("Pressure,O3PartialPressure,Temperature\r\n")
	for _, p := range []float64{1000, 900, 800, 700, 500, 400, 300, 200, 100, 50, 30, 10} {
		fmt.Fprintf(&b, "%g,%g,-20.0\r\n", p, vmrPPB*p*1e5/1e9)
	}
	return b.String()
}

func sounding(lat, lon, hour float64) domain.SatelliteSounding {
	pressure := []float64{1000, 800, 600, 400, 200, 100, 50, 10}
	n := len(pressure)
	s := domain.SatelliteSounding{
		Date:      testDay,
		Hour:      hour,
		Latitude:  lat,
		Longitude: lon,
		Pressure:  pressure,
		Ozone:     make([]float64, n),
		Apriori:   make([]float64, n),
		Kernel:    sparse.ZerosDense(n, n),
	}
	for i := range pressure {
		s.Ozone[i] = 55e-9
		s.Apriori[i] = 52e-9
		s.Kernel.Set(1, i, i)
	}
	return s
}

// TestPipelineEndToEnd runs a colocation from files on disk and checks that the
// accepted records are both archived and published.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	root := t.TempDir()
	input := filepath.Join(root, "input")
	output := filepath.Join(root, "output")
	dumps := filepath.Join(root, "dumps")

	ds, err := tropess.LookupDataset(tropess.DatasetCRIS)
	require.NoError(t, err)
	require.NoError(t, tropess.WriteFile(ds.DayPath(input, testDay), 10, []tropess.Record{
		{Sounding: sounding(19.5, -155.0, 18), Quality: 1},
		{Sounding: sounding(71.0, -156.0, 21), Quality: 1},
	}))
	require.NoError(t, woudc.WriteDump(filepath.Join(dumps, "ozonesonde.json"), []domain.SondeReport{
		{Station: "HIL", LaunchTime: testDay.Add(17 * time.Hour), Latitude: 19.72, Longitude: -155.05, DataBlock: sondeBlock(50)},
		{Station: "BRW", LaunchTime: testDay.Add(20 * time.Hour), Latitude: 71.32, Longitude: -156.61, DataBlock: sondeBlock(50)},
	}))

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewWriter(testConfig(broker), logger)
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		tropess.NewReader(input, logger, metrics),
		woudc.NewDumpSource(dumps, logger),
		pipeline.NewTransformer(domain.DefaultGrid(), true, domain.CompareOptions{}),
		archive.NewStore(output, logger),
		[]pipeline.Publisher{writer},
		logger,
		metrics,
		pipeline.Options{Workers: 2},
	)
	summary, err := p.Run(ctx, domain.RunParams{
		Dataset:           tropess.DatasetCRIS,
		Start:             testDay,
		End:               testDay,
		InputDir:          input,
		OutputDir:         output,
		Units:             domain.UnitsNone,
		MaxDistanceKm:     100,
		MaxTimeDeltaHours: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Accepted)

	art, err := archive.NewStore(output, logger).Load(summary.ArtifactPath)
	require.NoError(t, err)
	require.Len(t, art.Records, 2)

	consumer := newConsumer(t, broker)
	got := map[string]publishedMessage{}
	for range 2 {
		pm := readPublished(ctx, t, consumer)
		got[pm.Station] = pm
	}
	require.Contains(t, got, "HIL")
	require.Contains(t, got, "BRW")
	assert.InDelta(t, 6.318106, got["HIL"].DifferenceTropospherePercent, 1e-6)
	assert.Equal(t, testDay.Add(17*time.Hour), got["HIL"].Timestamp.UTC())
	assert.Equal(t, "2020-07-14/2020-07-14", got["BRW"].Headers["run_window"])
}

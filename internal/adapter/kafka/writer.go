package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/sonde-colocation/internal/config"
	"github.com/couchcryptid/sonde-colocation/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes comparison records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured colocation topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Publish serializes records and writes them in chunks of the configured batch size.
func (w *Writer) Publish(ctx context.Context, meta domain.ArtifactMeta, records []domain.ComparisonRecord) error {
	if len(records) == 0 {
		return nil
	}
	size := w.batchSize
	if size <= 0 {
		size = len(records)
	}
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		msgs := make([]kafkago.Message, 0, end-start)
		for _, r := range records[start:end] {
			msg, err := serializeToMessage(meta, r)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write kafka batch at record %d: %w", start, err)
		}
		w.logger.Debug("kafka batch written", "records", len(msgs))
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// recordMessage is the JSON value of a published record.
type recordMessage struct {
	Dataset string `json:"dataset"`
	domain.ComparisonRecord
}

// serializeToMessage marshals a ComparisonRecord into a Kafka message keyed by
// station and launch time.
func serializeToMessage(meta domain.ArtifactMeta, r domain.ComparisonRecord) (kafkago.Message, error) {
	data, err := json.Marshal(recordMessage{Dataset: meta.Dataset, ComparisonRecord: r})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize comparison record: %w", err)
	}
	launch := r.Timestamp.UTC().Format(time.RFC3339)
	return kafkago.Message{
		Key:   []byte(meta.Dataset + "/" + r.Station + "/" + launch),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(meta.Dataset)},
			{Key: "run_window", Value: []byte(meta.Start.Format(time.DateOnly) + "/" + meta.End.Format(time.DateOnly))},
		},
	}, nil
}

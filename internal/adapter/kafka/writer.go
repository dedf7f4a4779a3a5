// Package kafka publishes appended call records so downstream consumers see
// each new event once.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/couchcryptid/police-calls-etl/internal/config"
	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/rotisserie/eris"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per appended record.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// Publish sends the records appended to store in a single WriteMessages call.
// Records are keyed by event identifier so one event stays on one partition.
func (w *Writer) Publish(ctx context.Context, store string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(store, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return eris.Wrapf(err, "kafka: publish %d records for %s", len(msgs), store)
	}
	w.metrics.RecordsPublished.Add(float64(len(msgs)))
	w.logger.Debug("published records", "store", store, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a record as a name→value JSON object.
func serializeToMessage(store string, rec domain.Record) (kafkago.Message, error) {
	data, err := json.Marshal(rec.Map())
	if err != nil {
		return kafkago.Message{}, eris.Wrap(err, "kafka: serialize record")
	}
	captured, _ := rec.Get(domain.FieldCapturedAt)
	return kafkago.Message{
		Key:   []byte(rec.EventID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "store", Value: []byte(store)},
			{Key: "captured_at", Value: []byte(captured)},
		},
	}, nil
}

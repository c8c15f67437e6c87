package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/config"
	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces geocoded incidents to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes incidents in a single WriteMessages call.
// Messages are keyed by incident id so updates to one incident stay ordered.
func (w *Writer) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	processedAt := time.Now().UTC()
	msgs := make([]kafkago.Message, len(incidents))
	for i := range incidents {
		msg, err := serializeToMessage(incidents[i], processedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d incidents: %w", len(msgs), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an incident into a Kafka message. The
// geocode_strategy header is empty when geocoding was not attempted.
func serializeToMessage(inc domain.Incident, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(inc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident %s: %w", inc.ID, err)
	}
	var strategy string
	if inc.Geocode != nil {
		strategy = string(inc.Geocode.Strategy)
	}
	return kafkago.Message{
		Key:   []byte(inc.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "incident_type", Value: []byte(inc.Type)},
			{Key: "geocode_strategy", Value: []byte(strategy)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/config"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// IncidentWriter publishes drought incidents to a Kafka topic.
// It implements incident.Sink.
type IncidentWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewIncidentWriter creates a Kafka producer for the configured incident topic.
func NewIncidentWriter(cfg *config.Config, logger *slog.Logger) *IncidentWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaIncidentTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &IncidentWriter{writer: w, logger: logger}
}

// WriteIncidents publishes the incidents in a single WriteMessages call.
// Incidents for the same village land on the same partition.
func (w *IncidentWriter) WriteIncidents(ctx context.Context, incidents []domain.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(incidents))
	for i := range incidents {
		msg, err := serializeIncident(incidents[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write incidents: %w", err)
	}
	w.logger.Debug("incidents written", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *IncidentWriter) Close() error {
	return w.writer.Close()
}

// serializeIncident marshals an Incident into a Kafka message keyed by village.
func serializeIncident(inc domain.Incident) (kafkago.Message, error) {
	data, err := json.Marshal(inc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(inc.VillageID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tier", Value: []byte(inc.Tier)},
			{Key: "raised_at", Value: []byte(inc.RaisedAt.Format(time.RFC3339))},
		},
	}, nil
}

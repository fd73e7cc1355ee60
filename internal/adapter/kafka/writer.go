package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sipsa-price-map/internal/config"
	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes summaries to a Kafka topic, one message per city.
// It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Load publishes every city group of the summary in a single WriteMessages
// call. Messages are keyed by city so a city's prices stay on one partition.
func (w *Writer) Load(ctx context.Context, summary domain.Summary) error {
	if len(summary.Cities) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(summary.Cities))
	for i := range summary.Cities {
		msg, err := serializeToMessage(summary.Cities[i], summary.Metadata)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish city prices: %w", err)
	}
	w.logger.Debug("city prices published", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CityGroup into a Kafka message.
func serializeToMessage(group domain.CityGroup, meta domain.Metadata) (kafkago.Message, error) {
	data, err := json.Marshal(group)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize city group %s: %w", group.City, err)
	}
	return kafkago.Message{
		Key:   []byte(group.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "generated_at", Value: []byte(meta.GeneratedAt.Format(time.RFC3339))},
			{Key: "source", Value: []byte(meta.Source)},
		},
	}, nil
}

// Package export publishes admitted trade events to Kafka for downstream
// consumers. It is an optional leg of the feed fan-out; when no broker is
// configured the pipeline runs without it.
package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/solpulse/pulse/internal/model"
)

// writeTimeout bounds each publish so a slow broker cannot stall the
// dispatch round it runs in.
const writeTimeout = 5 * time.Second

// Publisher writes trades to a Kafka topic, keyed by pair so per-pair
// ordering survives partitioning.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a publisher for the given broker and topic.
func NewPublisher(broker, topic string, logger *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: writer, logger: logger}
}

// Publish sends one trade as JSON. Failures are logged and the event is
// dropped; the feed never blocks on the broker beyond the write timeout.
func (p *Publisher) Publish(t model.Trade) {
	payload, err := json.Marshal(t)
	if err != nil {
		p.logger.Error("failed to marshal trade for export", "id", t.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(t.Pair()),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish trade", "id", t.ID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

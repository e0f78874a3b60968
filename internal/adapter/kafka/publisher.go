// Package kafka publishes finalized aggregates for downstream consumers
// (dashboard caches, alerting). The Firestore sink remains the system of
// record; this is an optional secondary fan-out.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/quietmap/noise-stats-etl/internal/domain"
)

// Publisher produces aggregate records to a Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishAggregates serializes and publishes aggregates in a single
// WriteMessages call. Messages are keyed by bucket id, so compacted topics
// retain exactly one record per bucket.
func (p *Publisher) PublishAggregates(ctx context.Context, aggs []domain.BucketAggregate) error {
	if len(aggs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(aggs))
	for i := range aggs {
		msg, err := serializeToMessage(aggs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a BucketAggregate into a Kafka message.
func serializeToMessage(agg domain.BucketAggregate) (kafkago.Message, error) {
	data, err := json.Marshal(agg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize aggregate %s: %w", agg.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(agg.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "zone_id", Value: []byte(agg.ZoneID)},
			{Key: "bucket_start", Value: []byte(agg.Timestamp.Format(time.RFC3339))},
			{Key: "computed_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes one message per city, keyed by the city.
type KafkaSink struct {
	writer    messageWriter
	batchSize int
}

// NewKafkaWriter builds the writer used by KafkaSink.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	})
}

// NewKafkaSink wraps a writer. Messages are sent in batches of batchSize.
func NewKafkaSink(w messageWriter, batchSize int) *KafkaSink {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &KafkaSink{writer: w, batchSize: batchSize}
}

// Name implements Sink.
func (s *KafkaSink) Name() string { return "kafka" }

// Export publishes every record with the snapshot id in the headers.
func (s *KafkaSink) Export(ctx context.Context, snap Snapshot) error {
	headers := []kafka.Header{
		{Key: "snapshot_id", Value: []byte(snap.ID)},
		{Key: "created_at", Value: []byte(snap.CreatedAt.UTC().Format(time.RFC3339))},
		{Key: "keywords", Value: []byte(strings.Join(snap.Keywords, ","))},
	}

	msgs := make([]kafka.Message, 0, len(snap.Records))
	for _, rec := range snap.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal city %s: %w", rec.City, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(rec.City),
			Value:   payload,
			Headers: headers,
			Time:    snap.CreatedAt,
		})
	}

	for start := 0; start < len(msgs); start += s.batchSize {
		end := min(start+s.batchSize, len(msgs))
		if err := s.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("publish cities: %w", err)
		}
	}
	return nil
}

package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each record synchronously and waits for all in-sync
// replicas to acknowledge it.
type KafkaSink struct {
	source string
	w      messageWriter
}

// NewKafkaSink creates a sink writing to cfg.Topic.
func NewKafkaSink(source string, cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{
		source: source,
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: cfg.WriteTimeout,
			// Each Record waits for its own write; without this the writer
			// holds every message for the default 1s batch timeout.
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Record publishes one message keyed by record ID with a cause header.
func (s *KafkaSink) Record(ctx context.Context, raw []byte, cause string) error {
	rec := NewRecord(s.source, raw, cause)
	value, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("encode dead-letter record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.ID.String()),
		Value: value,
		Time:  rec.RecordedAt,
		Headers: []kafka.Header{
			{Key: "cause", Value: []byte(cause)},
			{Key: "source", Value: []byte(s.source)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish dead-letter record: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}

package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/learning-panda-ai/website/internal/telemetry/domain"
)

const writeTimeout = 5 * time.Second

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes auth events to the given topic.
// Returns nil, nil when brokers or topic are empty so callers can fall back to another emitter.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer, topic: topic}, nil
}

// Emit serializes the event as JSON and writes it to the topic, keyed by user id so a user's events stay ordered.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var key []byte
	if event.UserID != "" {
		key = []byte(event.UserID)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   key,
		Value: payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ErrorEvent is the payload published for every recorded error.
type ErrorEvent struct {
	EventID    string            `json:"event_id"`
	Message    string            `json:"message"`
	Context    map[string]string `json:"context,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// KafkaSink publishes error reports to a Kafka topic.
type KafkaSink struct {
	writer MessageWriter
	logger *log.Logger
	clock  func() time.Time
}

// NewKafkaWriter builds an asynchronous writer so RecordError never waits on the broker.
func NewKafkaWriter(brokers []string, topic string, logger *log.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil && logger != nil {
				logger.Printf("telemetry publish failed: %v", err)
			}
		},
	}
}

// NewKafkaSink constructs a sink on top of writer.
func NewKafkaSink(writer MessageWriter, logger *log.Logger) *KafkaSink {
	if logger == nil {
		logger = log.New(log.Writer(), "[telemetry] ", log.LstdFlags)
	}
	return &KafkaSink{writer: writer, logger: logger, clock: time.Now}
}

// RecordError implements Sink.
func (s *KafkaSink) RecordError(err error, fields map[string]string) {
	if err == nil {
		return
	}
	evt := ErrorEvent{
		EventID:    uuid.NewString(),
		Message:    err.Error(),
		Context:    maps.Clone(fields),
		RecordedAt: s.clock().UTC(),
	}
	payload, mErr := json.Marshal(evt)
	if mErr != nil {
		s.logger.Printf("telemetry encode failed: %v", mErr)
		return
	}
	msg := kafka.Message{
		Key:   []byte(fields["component"]),
		Value: payload,
		Time:  evt.RecordedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("client.error")},
		},
	}
	if wErr := s.writer.WriteMessages(context.Background(), msg); wErr != nil {
		s.logger.Printf("telemetry publish failed: %v", wErr)
	}
}

// Close flushes and releases the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

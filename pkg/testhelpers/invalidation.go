package testhelpers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/blocus/internal/cache"
	"example.com/blocus/internal/consumer"
)

// InvalidationConsumerHandle manages the lifecycle of a running invalidation consumer.
type InvalidationConsumerHandle struct {
	cancel context.CancelFunc
	reader *kafka.Reader
}

// StartInvalidationConsumer consumes gym events from topic and invalidates
// the gym list through invalidator.
func StartInvalidationConsumer(ctx context.Context, brokers []string, topic string, invalidator cache.Invalidator) (*InvalidationConsumerHandle, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("missing brokers")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        fmt.Sprintf("invalidation-integration-%d", time.Now().UnixNano()),
		Topic:          topic,
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})

	handler := consumer.NewInvalidationHandler(invalidator, log.Default())
	procCtx, cancel := context.WithCancel(ctx)
	go func() {
		_ = consumer.NewProcessor(reader, handler).Run(procCtx)
	}()

	return &InvalidationConsumerHandle{cancel: cancel, reader: reader}, nil
}

// Stop terminates the running consumer.
func (h *InvalidationConsumerHandle) Stop() error {
	h.cancel()
	return h.reader.Close()
}

// PublishGymEvent writes a gym change event the way the directory does.
func PublishGymEvent(ctx context.Context, broker, topic, eventType, gymID string) error {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	payload, err := json.Marshal(consumer.GymEvent{GymID: gymID, OccurredAt: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(gymID),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	})
}

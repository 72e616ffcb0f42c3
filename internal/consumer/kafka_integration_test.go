//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/blocus/internal/cache"
	"example.com/blocus/internal/testsupport"
)

func TestKafkaGymEventRefreshesGymList(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	topic := "gym_events"
	broker := testsupport.StartKafka(ctx, t, topic)

	var calls int32
	c := cache.New[[]string](cache.WithLogger(quietLogger()))
	q := c.Observe(cache.GymsKey, func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"Arkose"}, nil
	})
	defer q.Close()
	require.Eventually(t, func() bool { return q.State().IsSuccess() }, 5*time.Second, 50*time.Millisecond)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		GroupID:     "blocus-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()

	proc := NewProcessor(reader, NewInvalidationHandler(c, quietLogger()), WithLogger(quietLogger()))
	go func() {
		_ = proc.Run(consumerCtx)
	}()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	payload, err := json.Marshal(GymEvent{GymID: "gym-int", OccurredAt: time.Now().UTC().Format(time.RFC3339)})
	require.NoError(t, err)

	err = writer.WriteMessages(context.Background(), kafka.Message{
		Key:     []byte("gym-int"),
		Value:   payload,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(EventGymCreated)}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, 30*time.Second, 500*time.Millisecond)
}

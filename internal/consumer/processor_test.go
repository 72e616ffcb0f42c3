package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProcessorCommitsMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := json.RawMessage(`{"example":true}`)
	msg := kafka.Message{
		Topic:     "gym_events",
		Partition: 0,
		Offset:    12,
		Value:     payload,
		Time:      time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("gym.updated")},
		},
	}

	reader := &stubReader{msgs: []kafka.Message{msg}, errAfter: context.Canceled}
	handler := &RecordingHandler{}
	proc := NewProcessor(reader, handler, WithLogger(quietLogger()))

	err := proc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.count)
	require.Equal(t, 1, reader.commitCount)
}

type stubReader struct {
	msgs        []kafka.Message
	idx         int
	commitCount int
	errAfter    error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.idx >= len(r.msgs) {
		return kafka.Message{}, r.errAfter
	}
	msg := r.msgs[r.idx]
	r.idx++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCount++
	return nil
}

func (r *stubReader) Close() error { return nil }

type RecordingHandler struct {
	count int
	last  Message
}

var _ Handler = (*RecordingHandler)(nil)

func (h *RecordingHandler) Handle(_ context.Context, msg Message) error {
	h.count++
	h.last = msg
	return nil
}

func TestProcessorCommitsFailedMessages(t *testing.T) {
	msgs := []kafka.Message{
		{Topic: "gym_events", Offset: 1, Value: []byte(`{`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("gym.created")}}},
		{Topic: "gym_events", Offset: 2, Value: []byte(`{"gym_id":"abc"}`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("gym.created")}}},
	}
	reader := &stubReader{msgs: msgs, errAfter: context.Canceled}
	inv := &recordingInvalidator{}
	proc := NewProcessor(reader, NewInvalidationHandler(inv, quietLogger()), WithLogger(quietLogger()))

	err := proc.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, reader.commitCount)
	require.Len(t, inv.keys, 1)
	require.Equal(t, Stats{Handled: 1, Failed: 1}, proc.Stats())
}

func TestProcessorCountsFailuresByEventType(t *testing.T) {
	before := testutil.ToFloat64(failedCounter.WithLabelValues("gym_events", "gym.deleted"))
	msgs := []kafka.Message{
		{Topic: "gym_events", Offset: 7, Value: []byte(`not json`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("gym.deleted")}}},
	}
	reader := &stubReader{msgs: msgs, errAfter: context.Canceled}
	proc := NewProcessor(reader, NewInvalidationHandler(&recordingInvalidator{}, quietLogger()), WithLogger(quietLogger()))

	require.ErrorIs(t, proc.Run(context.Background()), context.Canceled)
	require.Equal(t, before+1, testutil.ToFloat64(failedCounter.WithLabelValues("gym_events", "gym.deleted")))
	require.Equal(t, int64(1), proc.Stats().Failed)
}

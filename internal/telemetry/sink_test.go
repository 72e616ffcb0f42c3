package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestLogSinkFormatsContext(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(log.New(&buf, "", 0))

	sink.RecordError(errors.New("disk full"), map[string]string{"op": "persist", "component": "selection"})
	require.Equal(t, "error: disk full (component=selection op=persist)\n", buf.String())

	buf.Reset()
	sink.RecordError(nil, nil)
	require.Empty(t, buf.String())
}

func TestKafkaSinkPublishesEvent(t *testing.T) {
	writer := &stubWriter{}
	sink := NewKafkaSink(writer, log.New(&bytes.Buffer{}, "", 0))
	sink.clock = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	ctx := map[string]string{"component": "selection", "op": "persist"}
	sink.RecordError(errors.New("disk full"), ctx)
	ctx["op"] = "mutated"

	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	require.Equal(t, "selection", string(msg.Key))
	require.Equal(t, "event_type", msg.Headers[0].Key)

	var evt ErrorEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	require.NotEmpty(t, evt.EventID)
	require.Equal(t, "disk full", evt.Message)
	require.Equal(t, "persist", evt.Context["op"])
	require.True(t, evt.RecordedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestKafkaSinkSwallowsWriterErrors(t *testing.T) {
	var buf bytes.Buffer
	writer := &stubWriter{err: errors.New("broker down")}
	sink := NewKafkaSink(writer, log.New(&buf, "", 0))

	require.NotPanics(t, func() {
		sink.RecordError(errors.New("boom"), nil)
	})
	require.Contains(t, buf.String(), "broker down")
}

func TestMultiForwardsToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	Multi{a, nil, b}.RecordError(errors.New("x"), nil)
	require.Equal(t, 1, a.count)
	require.Equal(t, 1, b.count)
}

type stubWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error { return nil }

type recordingSink struct {
	count int
}

func (s *recordingSink) RecordError(error, map[string]string) { s.count++ }

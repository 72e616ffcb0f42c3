// Package consumer streams gym directory change events from Kafka and turns
// them into query cache invalidations.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader describes the kafka.Reader functions the processor interacts with.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler processes decoded Kafka messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message represents a decoded Kafka record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Payload   json.RawMessage
	Timestamp time.Time
	Headers   map[string]string
}

// Option configures processor behaviour.
type Option func(*Processor)

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// Processor coordinates the consumer loop.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *log.Logger

	handled atomic.Int64
	failed  atomic.Int64
}

// Stats reports how many gym events were handled and how many failed.
// Failed events are committed too; the cached list then waits for the next
// event or its stale window.
type Stats struct {
	Handled int64
	Failed  int64
}

// NewProcessor constructs a processor from a reader/handler pair.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{reader: reader, handler: handler, logger: log.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes messages until ctx cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		decoded := Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Payload:   append(json.RawMessage{}, msg.Value...),
			Timestamp: msg.Time,
			Headers:   make(map[string]string, len(msg.Headers)),
		}
		for _, header := range msg.Headers {
			decoded.Headers[header.Key] = string(header.Value)
		}

		eventType := decoded.Headers[eventTypeHeader]
		if err := p.handler.Handle(ctx, decoded); err != nil {
			p.failed.Add(1)
			RecordFailed(decoded)
			p.logger.Printf("gym event %s failed (topic=%s offset=%d): %v", eventType, msg.Topic, msg.Offset, err)
		} else {
			n := p.handled.Add(1)
			p.logger.Printf("gym event %s handled (topic=%s offset=%d total=%d)", eventType, msg.Topic, msg.Offset, n)
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.logger.Printf("commit error: %v", err)
		}
	}
}

// Stats returns the running tallies.
func (p *Processor) Stats() Stats {
	return Stats{Handled: p.handled.Load(), Failed: p.failed.Load()}
}

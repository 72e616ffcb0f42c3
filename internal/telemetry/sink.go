// Package telemetry reports non-fatal client errors to an external sink.
package telemetry

import (
	"log"
	"sort"
	"strings"
)

// Sink accepts errors together with string context. Implementations must not
// block the caller and must never fail.
type Sink interface {
	RecordError(err error, context map[string]string)
}

// NoopSink discards every report.
type NoopSink struct{}

// RecordError performs no action.
func (NoopSink) RecordError(error, map[string]string) {}

// LogSink writes reports to a logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink constructs a LogSink; a nil logger falls back to the standard logger.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.New(log.Writer(), "[telemetry] ", log.LstdFlags)
	}
	return &LogSink{logger: logger}
}

// RecordError logs err with its context rendered as sorted key=value pairs.
func (s *LogSink) RecordError(err error, context map[string]string) {
	if err == nil {
		return
	}
	s.logger.Printf("error: %v %s", err, formatContext(context))
}

// Multi fans a report out to several sinks.
type Multi []Sink

// RecordError forwards to every non-nil sink.
func (m Multi) RecordError(err error, context map[string]string) {
	for _, sink := range m {
		if sink != nil {
			sink.RecordError(err, context)
		}
	}
}

func formatContext(context map[string]string) string {
	if len(context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+context[k])
	}
	return "(" + strings.Join(parts, " ") + ")"
}

package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of gym events that triggered a cache invalidation.",
	}, []string{"topic", "event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "consumer",
		Name:      "messages_failed_total",
		Help:      "Number of gym events the handler rejected.",
	}, []string{"topic", "event_type"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blocus",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Timestamp of the most recent gym event processed.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, failedCounter, lastMessageGauge)
}

// RecordProcessed updates counters for successfully handled messages.
func RecordProcessed(msg Message) {
	eventType := msg.Headers[eventTypeHeader]
	processedCounter.WithLabelValues(msg.Topic, eventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

// RecordFailed counts a gym event the handler could not apply.
func RecordFailed(msg Message) {
	failedCounter.WithLabelValues(msg.Topic, msg.Headers[eventTypeHeader]).Inc()
}

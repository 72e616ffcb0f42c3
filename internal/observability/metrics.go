package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Read outcomes recorded by the query cache.
const (
	ReadFresh = "fresh"
	ReadStale = "stale"
	ReadMiss  = "miss"
)

var (
	queryReadCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "query_cache",
		Name:      "reads_total",
		Help:      "Query cache reads partitioned by freshness outcome.",
	}, []string{"key", "outcome"})

	producerInvocationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "query_cache",
		Name:      "producer_invocations_total",
		Help:      "Underlying producer calls, retries included.",
	}, []string{"key"})

	retryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "query_cache",
		Name:      "retries_total",
		Help:      "Producer retries scheduled after a failed attempt.",
	}, []string{"key"})

	queryFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "query_cache",
		Name:      "failures_total",
		Help:      "Fetches that surfaced an error after exhausting retries.",
	}, []string{"key"})

	persistFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "selection",
		Name:      "persist_failures_total",
		Help:      "Selection write-throughs that failed and were dropped.",
	})

	malformedSelectionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blocus",
		Subsystem: "selection",
		Name:      "malformed_blobs_total",
		Help:      "Persisted selection blobs discarded during hydration.",
	})

	hydratedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "blocus",
		Subsystem: "selection",
		Name:      "hydrated_timestamp_seconds",
		Help:      "Unix timestamp at which the selection store finished hydrating.",
	})
)

func init() {
	prometheus.MustRegister(
		queryReadCounter,
		producerInvocationCounter,
		retryCounter,
		queryFailureCounter,
		persistFailureCounter,
		malformedSelectionCounter,
		hydratedGauge,
	)
}

// RecordCacheRead counts a cache read for key with the given outcome.
func RecordCacheRead(key, outcome string) {
	queryReadCounter.WithLabelValues(key, outcome).Inc()
}

// RecordProducerInvocation counts one underlying producer call.
func RecordProducerInvocation(key string) {
	producerInvocationCounter.WithLabelValues(key).Inc()
}

// RecordRetry counts a scheduled retry.
func RecordRetry(key string) {
	retryCounter.WithLabelValues(key).Inc()
}

// RecordQueryFailure counts a fetch that ended in error.
func RecordQueryFailure(key string) {
	queryFailureCounter.WithLabelValues(key).Inc()
}

// RecordPersistFailure counts a dropped selection write.
func RecordPersistFailure() {
	persistFailureCounter.Inc()
}

// RecordMalformedSelection counts a discarded persisted blob.
func RecordMalformedSelection() {
	malformedSelectionCounter.Inc()
}

// RecordHydrated sets the hydration watermark.
func RecordHydrated(ts time.Time) {
	if ts.IsZero() {
		return
	}
	hydratedGauge.Set(float64(ts.Unix()))
}

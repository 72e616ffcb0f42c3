package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCacheReadPartitionsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(queryReadCounter.WithLabelValues("test-key", ReadStale))
	RecordCacheRead("test-key", ReadStale)
	RecordCacheRead("test-key", ReadFresh)
	after := testutil.ToFloat64(queryReadCounter.WithLabelValues("test-key", ReadStale))
	require.Equal(t, before+1, after)
}

func TestRecordHydratedIgnoresZeroTime(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	RecordHydrated(ts)
	RecordHydrated(time.Time{})
	require.Equal(t, float64(1700000000), testutil.ToFloat64(hydratedGauge))
}

func TestSelectionCounters(t *testing.T) {
	persistBefore := testutil.ToFloat64(persistFailureCounter)
	malformedBefore := testutil.ToFloat64(malformedSelectionCounter)
	RecordPersistFailure()
	RecordMalformedSelection()
	require.Equal(t, persistBefore+1, testutil.ToFloat64(persistFailureCounter))
	require.Equal(t, malformedBefore+1, testutil.ToFloat64(malformedSelectionCounter))
}

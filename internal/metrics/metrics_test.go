package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveGeneration(t *testing.T) {
	okBefore := testutil.ToFloat64(generationsTotal.WithLabelValues(StatusOK))
	failedBefore := testutil.ToFloat64(generationsTotal.WithLabelValues(StatusFailed))

	ObserveGeneration(StatusOK, 150*time.Millisecond)
	ObserveGeneration("", time.Second)

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(generationsTotal.WithLabelValues(StatusOK)), 1e-9)
	assert.InDelta(t, failedBefore+1, testutil.ToFloat64(generationsTotal.WithLabelValues(StatusFailed)), 1e-9)
}

func TestTrackInflight(t *testing.T) {
	before := testutil.ToFloat64(generationsInflight)
	done := TrackInflight()
	assert.InDelta(t, before+1, testutil.ToFloat64(generationsInflight), 1e-9)
	done()
	assert.InDelta(t, before, testutil.ToFloat64(generationsInflight), 1e-9)
}

func TestCounters(t *testing.T) {
	truncated := testutil.ToFloat64(repliesTruncated)
	typing := testutil.ToFloat64(typingFailures)

	IncTruncated()
	IncTypingFailure()

	assert.InDelta(t, truncated+1, testutil.ToFloat64(repliesTruncated), 1e-9)
	assert.InDelta(t, typing+1, testutil.ToFloat64(typingFailures), 1e-9)
}

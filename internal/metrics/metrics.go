// Package metrics holds the Prometheus collectors for text generation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "textgenbot"

// Generation outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generation requests by outcome",
		},
		[]string{"status"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time from dispatch to generation result in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	generationsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generations_inflight",
			Help:      "Generations waiting for or holding a worker slot",
		},
	)

	repliesTruncated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_truncated_total",
			Help:      "Replies shortened to fit the message length limit",
		},
	)

	typingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_failures_total",
			Help:      "Typing indicators that could not be sent",
		},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, generationDuration, generationsInflight, repliesTruncated, typingFailures)
}

// ObserveGeneration records one finished generation.
func ObserveGeneration(status string, d time.Duration) {
	if status == "" {
		status = StatusFailed
	}
	generationsTotal.WithLabelValues(status).Inc()
	generationDuration.Observe(d.Seconds())
}

// TrackInflight increments the in-flight gauge and returns the matching
// decrement.
func TrackInflight() func() {
	generationsInflight.Inc()
	return generationsInflight.Dec
}

// IncTruncated counts a truncated reply.
func IncTruncated() { repliesTruncated.Inc() }

// IncTypingFailure counts a failed typing indicator.
func IncTypingFailure() { typingFailures.Inc() }

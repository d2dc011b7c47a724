package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tracker"

var (
	// Poll responses applied to the store (used by RecordPoll)
	pollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "total",
			Help:      "Total number of applied indexer poll responses by result",
		},
		[]string{"result"}, // found/not_found/transport_error
	)

	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Round-trip duration of indexer polls by result",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	pollLastTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "last_timestamp",
			Help:      "Timestamp of the last applied poll response",
		},
	)

	pollActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "active",
			Help:      "Number of running pollers",
		},
	)

	// Chain submissions (used by RecordSubmission)
	chainSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "submissions_total",
			Help:      "Total number of transaction submissions by chain and result",
		},
		[]string{"chain", "result"},
	)

	chainReceiptWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "receipt_wait_seconds",
			Help:      "Time spent waiting for transaction receipts by chain and result",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"chain", "result"},
	)
)

// TrackerMetrics provides Prometheus implementation of PollerMetrics and ChainMetrics
type TrackerMetrics struct{}

func NewTrackerMetrics() *TrackerMetrics {
	return &TrackerMetrics{}
}

func (tm *TrackerMetrics) RecordPoll(result string, duration float64) {
	pollTotal.WithLabelValues(result).Inc()
	pollDuration.WithLabelValues(result).Observe(duration)
}

func (tm *TrackerMetrics) SetLastPollTimestamp(timestamp float64) {
	pollLastTimestamp.Set(timestamp)
}

func (tm *TrackerMetrics) SetActivePollers(count float64) {
	pollActive.Set(count)
}

func (tm *TrackerMetrics) RecordSubmission(chain, result string) {
	chainSubmissionsTotal.WithLabelValues(chain, result).Inc()
}

func (tm *TrackerMetrics) RecordReceiptWait(chain, result string, duration float64) {
	chainReceiptWait.WithLabelValues(chain, result).Observe(duration)
}

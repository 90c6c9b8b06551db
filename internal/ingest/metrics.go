package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	envelopeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cwe_ingest_envelope_errors_total",
			Help: "Total subscription envelopes rejected as malformed.",
		},
	)
	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cwe_ingest_batch_duration_seconds",
			Help:    "End-to-end processing duration of one batch.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

package cwl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cwe_logsource_query_duration_seconds",
			Help:    "Duration of windowed log backend queries, pagination included.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source", "status"},
	)
	queryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cwe_logsource_query_events_total",
			Help: "Total log events returned by backend window queries.",
		},
		[]string{"source"},
	)
)

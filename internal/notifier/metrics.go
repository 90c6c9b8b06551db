package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cwe_sink_dispatch_total",
			Help: "Total sink delivery attempts by sink and outcome status.",
		},
		[]string{"sink", "status"},
	)
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cwe_sink_dispatch_duration_seconds",
			Help:    "Duration of sink delivery attempts.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"sink"},
	)
)

// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DatasetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transitrisk_dataset_loads_total",
		Help: "Dataset load attempts by dataset and result.",
	}, []string{"dataset", "result"})

	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transitrisk_predictions_total",
		Help: "Risk predictions by outcome (high, low, failed, unavailable).",
	}, []string{"outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transitrisk_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by method and status.",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1.0, 2.5},
	}, []string{"method", "status"})
)

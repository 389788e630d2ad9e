// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blinkshot_generation_requests_total",
			Help: "Generation requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blinkshot_upstream_duration_seconds",
			Help:    "Time spent waiting on the image provider",
			Buckets: []float64{.1, .25, .5, 1, 2, 3, 5, 8, 13, 21, 34, 60},
		},
		[]string{"model", "status"},
	)

	PolicyFailOpen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blinkshot_policy_fail_open_total",
			Help: "Policy checks skipped because a collaborator errored",
		},
		[]string{"check"},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blinkshot_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)

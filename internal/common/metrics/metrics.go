// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransportRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_transport_requests_total",
			Help: "Total number of backend requests by route and outcome",
		},
		[]string{"method", "route", "status"},
	)

	TransportRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "console_transport_request_duration_seconds",
			Help: "Duration of backend requests in seconds",
		},
		[]string{"method", "route"},
	)

	TransportRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_transport_requests_in_flight",
			Help: "Number of backend requests awaiting a response",
		},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_session_transitions_total",
			Help: "Total number of session sign-ins, sign-outs and restores",
		},
		[]string{"transition"},
	)
)

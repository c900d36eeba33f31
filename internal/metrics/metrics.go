package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PaymentsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Payment initiation requests that created a transaction.",
		},
		[]string{"method"},
	)

	PaymentsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_failed_total",
			Help: "Payment initiations that ended in a failure envelope.",
		},
		[]string{"code"},
	)

	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Stored status changes, by new status and writer.",
		},
		[]string{"status", "source"}, // source: initiate|poll|callback
	)

	TokenFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_token_fetches_total",
			Help: "Upstream access token fetches.",
		},
		[]string{"result"},
	)

	Callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Inbound gateway callbacks, by whether a transaction matched.",
		},
		[]string{"matched"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	initOnce sync.Once
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			PaymentsInitiated,
			PaymentsFailed,
			StatusTransitions,
			TokenFetches,
			Callbacks,
			HTTPDuration,
		)
	})
}

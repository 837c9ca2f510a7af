package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "churn",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of prediction endpoints",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churn",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by prediction endpoint and error code",
		},
		[]string{"endpoint", "code"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churn",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the per-client limiter",
		},
		[]string{"endpoint"},
	)
)

// Register adds the endpoint collectors to reg once per process.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(APILatency, APIErrors, RateLimited)
	})
}

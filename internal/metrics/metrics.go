package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "api_requests_total",
		Help:      "Calls made to the e-learning API by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	APIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal",
		Name:      "api_request_duration_seconds",
		Help:      "Latency of calls made to the e-learning API.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	SectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "summary_section_failures_total",
		Help:      "Summary sections that failed to load.",
	}, []string{"section"})

	SessionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "session_store_operations_total",
		Help:      "Session store operations by backend, operation and outcome.",
	}, []string{"backend", "op", "outcome"})

	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "auth_events_total",
		Help:      "Login, logout, register, refresh and role switch events.",
	}, []string{"event", "outcome"})
)

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

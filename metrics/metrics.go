// Package metrics provides Prometheus metrics collection for the safemed API.
// It exports metrics for HTTP request performance:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// plus domain metrics for the risk engine and its knowledge base:
//   - assessments_total: Counter with drug and risk_level labels
//   - knowledge_base_drugs: Gauge for loaded drug records
//   - knowledge_base_last_reload_timestamp_seconds: Gauge for reload recency
//   - knowledge_base_reload_duration_seconds: Gauge for reload cost
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~30 minutes)",
		},
	)

	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessments_total",
			Help: "Completed risk assessments by drug and resulting risk level",
		},
		[]string{"drug", "risk_level"},
	)

	KnowledgeBaseDrugs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "knowledge_base_drugs",
			Help: "Drug records currently loaded",
		},
	)

	KnowledgeBaseLastReload = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "knowledge_base_last_reload_timestamp_seconds",
			Help: "Unix timestamp of the last successful knowledge base reload",
		},
	)

	KnowledgeBaseReloadDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "knowledge_base_reload_duration_seconds",
			Help: "Duration of the last successful knowledge base reload",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(AssessmentsTotal)
	prometheus.MustRegister(KnowledgeBaseDrugs)
	prometheus.MustRegister(KnowledgeBaseLastReload)
	prometheus.MustRegister(KnowledgeBaseReloadDuration)
}

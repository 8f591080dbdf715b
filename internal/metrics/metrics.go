package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SolveRuns counts solver runs by terminal status
	SolveRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solve_runs_total", Help: "Solver runs by status."},
		[]string{"status"},
	)
	// SolveDuration records wall-clock solve time in seconds
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Wall-clock solve time in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300}},
	)
	// ModelVariables reports the variable count of the last built model
	ModelVariables = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "model_variables", Help: "Variable count of the last built model."},
	)
	// ModelConstraints reports the constraint count of the last built model
	ModelConstraints = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "model_constraints", Help: "Constraint count of the last built model."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)

	// BuildInfo carries the server version as a constant gauge label
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "build_info", Help: "Build metadata."},
		[]string{"version"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveRuns)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(ModelVariables)
		Registry.MustRegister(ModelConstraints)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(BuildInfo)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

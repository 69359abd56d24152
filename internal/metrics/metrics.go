package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
// All Record methods are safe to call on a nil *Registry.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	runsTotal           *prometheus.CounterVec
	runDuration         prometheus.Histogram
	toolCalls           *prometheus.CounterVec
	toolDuration        *prometheus.HistogramVec
	guardrailDenials    *prometheus.CounterVec
	backtestsTotal      *prometheus.CounterVec
	backtestDuration    prometheus.Histogram
	optimizationsTotal  *prometheus.CounterVec
	optimizationLatency prometheus.Histogram
	candidatesTotal     *prometheus.CounterVec
	reflectionsTotal    *prometheus.CounterVec
	memoryUpserts       *prometheus.CounterVec
	priceFetches        *prometheus.CounterVec
	notifications       *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_runs_total",
			Help: "Total number of decision pipeline runs",
		},
		[]string{"status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_run_duration_seconds",
			Help:    "Decision pipeline run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	r.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_tool_calls_total",
			Help: "Total number of tool calls by outcome",
		},
		[]string{"tool", "status"},
	)
	r.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "argus_tool_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
	r.guardrailDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_guardrail_denials_total",
			Help: "Total number of tool calls denied by the guardrail",
		},
		[]string{"code"},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)
	r.optimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_optimizations_total",
			Help: "Total number of grid optimizations",
		},
		[]string{"status"},
	)
	r.optimizationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_optimization_duration_seconds",
			Help:    "Grid optimization duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.candidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_optimizer_candidates_total",
			Help: "Optimizer grid candidates by outcome",
		},
		[]string{"outcome"},
	)
	r.reflectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_reflection_fallbacks_total",
			Help: "Reflection fallbacks by kind",
		},
		[]string{"kind"},
	)
	r.memoryUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_memory_upserts_total",
			Help: "Memory upserts by result",
		},
		[]string{"result"},
	)
	r.priceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_price_fetches_total",
			Help: "Price history fetches by provider and status",
		},
		[]string{"provider", "status"},
	)
	r.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_notifications_total",
			Help: "Run digest deliveries by notifier and status",
		},
		[]string{"notifier", "status"},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.toolCalls)
	reg.MustRegister(r.toolDuration)
	reg.MustRegister(r.guardrailDenials)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.optimizationsTotal)
	reg.MustRegister(r.optimizationLatency)
	reg.MustRegister(r.candidatesTotal)
	reg.MustRegister(r.reflectionsTotal)
	reg.MustRegister(r.memoryUpserts)
	reg.MustRegister(r.priceFetches)
	reg.MustRegister(r.notifications)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	if r == nil {
		return
	}
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Dec()
}

// RecordRun records a finished pipeline run.
func (r *Registry) RecordRun(status string, duration float64) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration)
}

// RecordToolCall records one execution record.
func (r *Registry) RecordToolCall(tool, status string, duration float64) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, status).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(duration)
}

// RecordDenial records a guardrail denial.
func (r *Registry) RecordDenial(code string) {
	if r == nil {
		return
	}
	r.guardrailDenials.WithLabelValues(code).Inc()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	if r == nil {
		return
	}
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordOptimization records a grid search completion.
func (r *Registry) RecordOptimization(status string, duration float64) {
	if r == nil {
		return
	}
	r.optimizationsTotal.WithLabelValues(status).Inc()
	r.optimizationLatency.Observe(duration)
}

// RecordCandidates adds n grid candidates with the given outcome.
func (r *Registry) RecordCandidates(outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.candidatesTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordReflection records a synthesized reflection step.
func (r *Registry) RecordReflection(kind string) {
	if r == nil {
		return
	}
	r.reflectionsTotal.WithLabelValues(kind).Inc()
}

// RecordMemoryUpsert records an upsert attempt result (applied, rejected, error).
func (r *Registry) RecordMemoryUpsert(result string) {
	if r == nil {
		return
	}
	r.memoryUpserts.WithLabelValues(result).Inc()
}

// RecordFetch records a price history fetch.
func (r *Registry) RecordFetch(provider, status string) {
	if r == nil {
		return
	}
	r.priceFetches.WithLabelValues(provider, status).Inc()
}

// RecordNotification records a digest delivery attempt.
func (r *Registry) RecordNotification(notifier, status string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(notifier, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the plan/execute/evaluate pipeline.
type Metrics struct {
	config MetricsConfig

	// Plan metrics
	plansGenerated         *prometheus.CounterVec
	planValidationFailures prometheus.Counter
	llmFallbacks           prometheus.Counter

	// Execution metrics
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec

	// Evaluation metrics
	evalCases         *prometheus.CounterVec
	evalBatchDuration prometheus.Histogram

	// System metrics
	activeExecutions prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		plansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_generated_total",
				Help:      "Total number of plans generated",
			},
			[]string{"workflow", "plan_mode"},
		),
		planValidationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_validation_failures_total",
				Help:      "Total number of plans rejected by validation",
			},
		),
		llmFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_fallbacks_total",
				Help:      "Total number of model refinements discarded in favor of the deterministic result",
			},
		),

		executionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_completed_total",
				Help:      "Total number of completed engine executions",
			},
			[]string{"status", "error_type"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of engine executions in seconds",
				Buckets:   buckets,
			},
			[]string{"workflow", "status"},
		),

		evalCases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "eval_cases_total",
				Help:      "Total number of evaluation cases processed",
			},
			[]string{"status"},
		),
		evalBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "eval_batch_duration_seconds",
				Help:      "Duration of evaluation batches in seconds",
				Buckets:   buckets,
			},
		),

		activeExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Current number of in-flight engine executions",
			},
		),
	}

	registry.MustRegister(
		m.plansGenerated,
		m.planValidationFailures,
		m.llmFallbacks,
		m.executionsCompleted,
		m.executionDuration,
		m.evalCases,
		m.evalBatchDuration,
		m.activeExecutions,
	)

	return m, nil
}

// RecordPlanGenerated increments the generated-plan counter.
func (m *Metrics) RecordPlanGenerated(workflow, planMode string) {
	if m.plansGenerated == nil {
		return
	}
	m.plansGenerated.WithLabelValues(workflow, planMode).Inc()
}

// RecordValidationFailure increments the validation failure counter.
func (m *Metrics) RecordValidationFailure() {
	if m.planValidationFailures == nil {
		return
	}
	m.planValidationFailures.Inc()
}

// RecordLLMFallback increments the model fallback counter.
func (m *Metrics) RecordLLMFallback() {
	if m.llmFallbacks == nil {
		return
	}
	m.llmFallbacks.Inc()
}

// ExecutionStarted marks one execution as in flight.
func (m *Metrics) ExecutionStarted() {
	if m.activeExecutions == nil {
		return
	}
	m.activeExecutions.Inc()
}

// RecordExecutionCompleted records a finished execution with its outcome.
func (m *Metrics) RecordExecutionCompleted(workflow, status, errorType string, duration time.Duration) {
	if m.executionsCompleted == nil {
		return
	}
	m.executionsCompleted.WithLabelValues(status, errorType).Inc()
	m.executionDuration.WithLabelValues(workflow, status).Observe(duration.Seconds())
	m.activeExecutions.Dec()
}

// RecordEvalCase records one processed evaluation case by status.
func (m *Metrics) RecordEvalCase(status string) {
	if m.evalCases == nil {
		return
	}
	m.evalCases.WithLabelValues(status).Inc()
}

// RecordEvalBatch records the duration of one evaluation batch.
func (m *Metrics) RecordEvalBatch(duration time.Duration) {
	if m.evalBatchDuration == nil {
		return
	}
	m.evalBatchDuration.Observe(duration.Seconds())
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Package metrics exposes Prometheus instrumentation for the request
// orchestrator.
//
// Metrics:
//   - sherpa_orchestrator_requests_total: completed requests by status
//   - sherpa_orchestrator_request_duration_seconds: request latency
//   - sherpa_orchestrator_attempt_errors_total: classified attempt errors by type
//   - sherpa_orchestrator_retry_delay_seconds: scheduled backoff delays
//   - sherpa_orchestrator_request_chars_total: characters processed by direction
//   - sherpa_orchestrator_cost_total: accumulated estimated cost
//   - sherpa_orchestrator_budget_ratio: spend as a fraction of budget by window
//   - sherpa_orchestrator_credentials: pool size by status
//   - sherpa_orchestrator_queue_pending: queued tasks by priority
//   - sherpa_orchestrator_queue_in_flight: tasks currently executing
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config controls metric emission.
type Config struct {
	// Enabled gates all recording. A disabled collector is a no-op.
	Enabled bool

	// Namespace and Subsystem prefix every metric name.
	// Defaults: "sherpa" / "orchestrator".
	Namespace string
	Subsystem string

	// RequestDurationBuckets overrides the latency histogram buckets.
	RequestDurationBuckets []float64
}

// Collector owns every metric the orchestrator emits. A nil *Collector is
// safe to call and records nothing.
type Collector struct {
	enabled bool

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	attemptErrors   *prometheus.CounterVec
	retryDelay      prometheus.Histogram
	charsTotal      *prometheus.CounterVec
	costTotal       prometheus.Counter
	budgetRatio     *prometheus.GaugeVec
	credentialGauge *prometheus.GaugeVec
	queuePending    *prometheus.GaugeVec
	queueInFlight   prometheus.Gauge
}

// NewCollector creates and registers the orchestrator metrics. A nil
// registry falls back to a fresh private registry.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "sherpa"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "orchestrator"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Generation latencies cluster between a few hundred milliseconds
		// and tens of seconds.
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}

	c := &Collector{
		enabled: cfg.Enabled,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Completed generation requests by final status",
			},
			[]string{"status"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end generation request duration in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
		),
		attemptErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "attempt_errors_total",
				Help:      "Classified per-attempt failures by error type",
			},
			[]string{"type"},
		),
		retryDelay: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retry_delay_seconds",
				Help:      "Backoff delays scheduled between attempts",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		charsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_chars_total",
				Help:      "Characters processed by direction (input/output)",
			},
			[]string{"direction"},
		),
		costTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cost_total",
				Help:      "Accumulated estimated generation cost",
			},
		),
		budgetRatio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "budget_ratio",
				Help:      "Spend as a fraction of the configured budget by window",
			},
			[]string{"window"},
		),
		credentialGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "credentials",
				Help:      "Credential pool size by status",
			},
			[]string{"status"},
		),
		queuePending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_pending",
				Help:      "Queued tasks by priority level",
			},
			[]string{"priority"},
		),
		queueInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_in_flight",
				Help:      "Tasks currently executing",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.attemptErrors,
		c.retryDelay,
		c.charsTotal,
		c.costTotal,
		c.budgetRatio,
		c.credentialGauge,
		c.queuePending,
		c.queueInFlight,
	)
	return c
}

// RecordRequest records one completed request.
func (c *Collector) RecordRequest(status string, duration time.Duration, inputChars, outputChars int, cost float64) {
	if c == nil || !c.enabled {
		return
	}
	c.requestsTotal.WithLabelValues(status).Inc()
	c.requestDuration.Observe(duration.Seconds())
	c.charsTotal.WithLabelValues("input").Add(float64(inputChars))
	c.charsTotal.WithLabelValues("output").Add(float64(outputChars))
	if cost > 0 {
		c.costTotal.Add(cost)
	}
}

// RecordAttemptError records one classified attempt failure.
func (c *Collector) RecordAttemptError(errType string) {
	if c == nil || !c.enabled {
		return
	}
	c.attemptErrors.WithLabelValues(errType).Inc()
}

// RecordRetryDelay records a scheduled backoff delay.
func (c *Collector) RecordRetryDelay(d time.Duration) {
	if c == nil || !c.enabled {
		return
	}
	c.retryDelay.Observe(d.Seconds())
}

// SetBudgetRatio publishes the current spend ratio for a window
// ("daily" or "monthly").
func (c *Collector) SetBudgetRatio(window string, ratio float64) {
	if c == nil || !c.enabled {
		return
	}
	c.budgetRatio.WithLabelValues(window).Set(ratio)
}

// SetCredentialCount publishes the pool size for one status.
func (c *Collector) SetCredentialCount(status string, n int) {
	if c == nil || !c.enabled {
		return
	}
	c.credentialGauge.WithLabelValues(status).Set(float64(n))
}

// SetQueueDepth publishes the backlog size for one priority level.
func (c *Collector) SetQueueDepth(priority string, n int) {
	if c == nil || !c.enabled {
		return
	}
	c.queuePending.WithLabelValues(priority).Set(float64(n))
}

// SetQueueInFlight publishes the number of executing tasks.
func (c *Collector) SetQueueInFlight(n int) {
	if c == nil || !c.enabled {
		return
	}
	c.queueInFlight.Set(float64(n))
}

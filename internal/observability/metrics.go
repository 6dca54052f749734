package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	runTotal    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runCost     *prometheus.CounterVec
	runTokens   *prometheus.CounterVec
	runIters    prometheus.Histogram

	providerAttemptTotal    *prometheus.CounterVec
	providerAttemptDuration *prometheus.HistogramVec
	providerFallbackTotal   *prometheus.CounterVec

	guardrailBlockTotal *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			runTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_total",
					Help: "Total agent runs by terminal status.",
				},
				[]string{"status"},
			),
			runDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_run_duration_seconds",
					Help:    "Agent run duration in seconds by terminal status.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"status"},
			),
			runCost: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_cost_usd_total",
					Help: "Estimated USD spent by agent runs by model.",
				},
				[]string{"model"},
			),
			runTokens: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_tokens_total",
					Help: "Tokens consumed by agent runs by model.",
				},
				[]string{"model"},
			),
			runIters: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agent_run_iterations",
					Help:    "Loop iterations per agent run.",
					Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
				},
			),
			providerAttemptTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_attempt_total",
					Help: "Total provider call attempts by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerAttemptDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "provider_attempt_duration_seconds",
					Help:    "Provider call attempt duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			providerFallbackTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_fallback_total",
					Help: "Total fallback provider invocations by primary, fallback and status.",
				},
				[]string{"primary", "fallback", "status"},
			),
			guardrailBlockTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "guardrail_block_total",
					Help: "Total guardrail blocks by checkpoint kind and guardrail.",
				},
				[]string{"kind", "guardrail"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
		}

		prometheus.MustRegister(
			m.runTotal,
			m.runDuration,
			m.runCost,
			m.runTokens,
			m.runIters,
			m.providerAttemptTotal,
			m.providerAttemptDuration,
			m.providerFallbackTotal,
			m.guardrailBlockTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRun observes one finished run.
func RecordRun(status, model string, duration time.Duration, iterations, tokens int, costUSD float64) {
	m := getMetrics()
	m.runTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.runIters.Observe(float64(iterations))
	if tokens > 0 {
		m.runTokens.WithLabelValues(model).Add(float64(tokens))
	}
	if costUSD > 0 {
		m.runCost.WithLabelValues(model).Add(costUSD)
	}
}

func RecordProviderAttempt(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.providerAttemptTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.providerAttemptDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordFallback(primary, fallback string, success bool) {
	m := getMetrics()
	m.providerFallbackTotal.WithLabelValues(primary, fallback, statusLabel(success)).Inc()
}

func RecordGuardrailBlock(kind, guardrail string) {
	m := getMetrics()
	m.guardrailBlockTotal.WithLabelValues(kind, guardrail).Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

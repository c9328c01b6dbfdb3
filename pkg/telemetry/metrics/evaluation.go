package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
)

// EvaluationMetrics tracks policy evaluations.
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	faultsTotal        *prometheus.CounterVec
	fuelConsumed       prometheus.Histogram
	inflight           prometheus.Gauge
}

// NewEvaluationMetrics creates and registers evaluation metrics with the provided registry.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations by decision",
			},
			[]string{"decision"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of one sandboxed evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~330ms
			},
		),

		faultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sandbox_faults_total",
				Help:      "Total number of evaluations that ended in a sandbox fault",
			},
			[]string{"kind"},
		),

		fuelConsumed: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fuel_consumed",
				Help:      "Instructions charged per evaluation",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 9), // 100 to ~6.5M
			},
		),

		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "inflight_evaluations",
				Help:      "Number of evaluations currently running",
			},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.faultsTotal,
		em.fuelConsumed,
		em.inflight,
	)

	return em
}

// RecordEvaluation records one finished evaluation.
func (em *EvaluationMetrics) RecordEvaluation(decision string, duration time.Duration, fuel int64) {
	em.evaluationsTotal.WithLabelValues(decision).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
	em.fuelConsumed.Observe(float64(fuel))
}

// RecordFault records a sandbox fault of the given kind.
func (em *EvaluationMetrics) RecordFault(kind string) {
	em.faultsTotal.WithLabelValues(kind).Inc()
}

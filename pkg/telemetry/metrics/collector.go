package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
)

// Collector owns every connector metric and the registry they live in.
// A disabled collector accepts every call and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	reloadMetrics     *ReloadMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created
// with the Go runtime and process collectors attached.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:            cfg,
		registry:          registry,
		evaluationMetrics: NewEvaluationMetrics(cfg, registry),
		reloadMetrics:     NewReloadMetrics(cfg, registry),
	}
}

// RecordEvaluation records one finished evaluation.
//
// Parameters:
//   - decision: "allow", "deny", or "fault"
//   - duration: wall time of the evaluation
//   - fuel: instructions charged
func (c *Collector) RecordEvaluation(decision string, duration time.Duration, fuel int64) {
	if !c.config.Enabled {
		return
	}

	c.evaluationMetrics.RecordEvaluation(decision, duration, fuel)
}

// RecordFault records a sandbox fault by kind.
func (c *Collector) RecordFault(kind string) {
	if !c.config.Enabled {
		return
	}

	c.evaluationMetrics.RecordFault(kind)
}

// EvaluationStarted increments the in-flight gauge. Pair with EvaluationDone.
func (c *Collector) EvaluationStarted() {
	if !c.config.Enabled {
		return
	}

	c.evaluationMetrics.inflight.Inc()
}

// EvaluationDone decrements the in-flight gauge.
func (c *Collector) EvaluationDone() {
	if !c.config.Enabled {
		return
	}

	c.evaluationMetrics.inflight.Dec()
}

// RecordReload records one reload attempt.
//
// Parameters:
//   - status: "loaded", "unchanged", or "rejected"
//   - trigger: "manual", "watch", or "poll"
func (c *Collector) RecordReload(status, trigger string) {
	if !c.config.Enabled {
		return
	}

	c.reloadMetrics.RecordReload(status, trigger)
}

// SetActiveModule publishes the version and digest of the active module.
func (c *Collector) SetActiveModule(version, digest string) {
	if !c.config.Enabled {
		return
	}

	c.reloadMetrics.SetActiveModule(version, digest)
}

// SetMemoryEstimate publishes the latest memory estimate.
func (c *Collector) SetMemoryEstimate(bytes uint64) {
	if !c.config.Enabled {
		return
	}

	c.reloadMetrics.memory.Set(float64(bytes))
}

// Enabled reports whether metrics are recorded and served.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

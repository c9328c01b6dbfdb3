package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
)

// ReloadMetrics tracks policy reloads and the active module.
type ReloadMetrics struct {
	reloadsTotal *prometheus.CounterVec
	activeModule *prometheus.GaugeVec
	memory       prometheus.Gauge
}

// NewReloadMetrics creates and registers reload metrics with the provided registry.
func NewReloadMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReloadMetrics {
	rm := &ReloadMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reloads_total",
				Help:      "Total number of policy reload attempts",
			},
			[]string{"status", "trigger"},
		),

		activeModule: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_module_info",
				Help:      "Active policy module (value is always 1)",
			},
			[]string{"version", "digest"},
		),

		memory: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "memory_estimate_bytes",
				Help:      "Estimated memory used by the connector",
			},
		),
	}

	registry.MustRegister(
		rm.reloadsTotal,
		rm.activeModule,
		rm.memory,
	)

	return rm
}

// RecordReload records one reload attempt.
func (rm *ReloadMetrics) RecordReload(status, trigger string) {
	rm.reloadsTotal.WithLabelValues(status, trigger).Inc()
}

// SetActiveModule replaces the active module series.
func (rm *ReloadMetrics) SetActiveModule(version, digest string) {
	rm.activeModule.Reset()
	rm.activeModule.WithLabelValues(version, digest).Set(1)
}

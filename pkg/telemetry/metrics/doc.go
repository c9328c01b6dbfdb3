// Package metrics provides Prometheus metrics for the edge connector.
//
// # Metrics
//
// All names carry the configured namespace and subsystem (edge_connector_
// by default):
//
//   - evaluations_total{decision}: evaluations by allow, deny, or fault
//   - evaluation_duration_seconds: wall time of one evaluation
//   - sandbox_faults_total{kind}: faults by kind (fuel_exhausted, timeout, ...)
//   - fuel_consumed: instructions charged per evaluation
//   - reloads_total{status,trigger}: reload attempts by outcome and source
//   - active_module_info{version,digest}: 1 for the active policy module
//   - memory_estimate_bytes: last reported memory estimate
//   - inflight_evaluations: evaluations currently running
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordEvaluation("allow", time.Since(start), fuel)
//	http.Handle("/metrics", collector.Handler())
package metrics

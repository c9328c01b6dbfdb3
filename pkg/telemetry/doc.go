// Package telemetry groups the observability packages of the edge
// connector:
//
//   - logging: slog construction with request and trace IDs from context
//   - metrics: Prometheus collectors for evaluations, faults, and reloads
//   - tracing: OpenTelemetry provider with an OTLP gRPC exporter
//   - health: liveness, readiness, and version endpoints
package telemetry

// Package health provides liveness, readiness, and version endpoints.
//
//   - /health: the process is up
//   - /ready: every registered check passes; the connector registers
//     "policy", which fails until an active policy module is published
//   - /version: build information plus the active policy version
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("policy", health.PolicyCheck(conn.ActiveVersion))
//	mux.Handle("GET /ready", checker.ReadinessHandler())
package health

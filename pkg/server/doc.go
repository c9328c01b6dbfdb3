// Package server exposes the connector over HTTP.
//
// # Routes
//
//   - POST /evaluate - Evaluate the request body against the active policy
//   - POST /reload   - Re-read the policy artifact
//   - GET  /memory   - Memory estimate against server.memory_target_mb
//   - GET  /metrics  - Prometheus exposition (telemetry.metrics.path)
//   - GET  /health   - Liveness probe (always returns 200)
//   - GET  /ready    - Readiness probe (503 until a policy module is active)
//   - GET  /version  - Build and policy version
//
// # Evaluate
//
// The body is passed to the sandbox byte for byte once it parses as JSON:
//
//	POST /evaluate
//	{"role":"operator","resource":"secret"}
//
//	200 OK
//	{"allowed":false,"reason":"operator restricted","policy_version":"1.0.0",
//	 "fuel_consumed":1480,"duration_us":212}
//
// Denials and sandbox faults are 200 responses with "allowed": false. Clients
// must read the decision from the body. Bodies over server.max_body_bytes get
// 413 and a denied outcome.
//
// # Reload
//
//	POST /reload
//
//	200 OK
//	{"success":true,"status":"loaded","message":"policy reloaded: 1.0.0 -> 1.1.0",
//	 "size_bytes":1893,"policy_version":"1.1.0","previous_version":"1.0.0",...}
//
// A rejected candidate returns 422 with "success": false, the stage that
// refused it and the version that is still active.
//
// # Graceful Shutdown
//
// Start serves until its context is cancelled, then waits up to
// server.shutdown_timeout for active requests to complete.
package server

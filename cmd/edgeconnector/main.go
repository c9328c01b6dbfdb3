// Edgeconnector evaluates access requests against a WebAssembly policy
// module running in a fuel and memory bounded sandbox.
//
// It serves an HTTP API for evaluations and reloads, and offers tools for
// building and checking policy artifacts:
//   - Fail-closed evaluation of JSON requests
//   - Hot reload of the policy artifact on change, on schedule or on demand
//   - Prometheus metrics and OpenTelemetry traces
//
// Usage:
//
//	# Start the server with the default configuration
//	edgeconnector run
//
//	# Start with a custom configuration file
//	edgeconnector run --config /etc/edgeconnector/edgeconnector.yaml
//
//	# Compile a rule set into a policy artifact
//	edgeconnector policy build policies/default.yaml -o policies/default.wasm
//
//	# Evaluate one request without starting the server
//	edgeconnector eval --input '{"role":"admin"}'
package main

func main() {
	Execute()
}

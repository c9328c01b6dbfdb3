// Package config provides configuration management for the edge connector.
//
// Configuration is loaded from a YAML file with environment variable
// overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("edgeconnector.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention EDGE_SECTION_FIELD.
// For example:
//
//   - EDGE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - EDGE_POLICY_PATH overrides policy.path
//   - EDGE_SANDBOX_FUEL_BUDGET overrides sandbox.fuel_budget
//   - EDGE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// The default file, edgeconnector.yaml, may be absent. Any other path must
// exist.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:3000"
//
//	policy:
//	  path: "./policies/default.wasm"
//	  watch: true
//	  debounce: 500ms
//
//	sandbox:
//	  memory_pages: 1
//	  fuel_budget: 1000000
//	  timeout: 100ms
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config

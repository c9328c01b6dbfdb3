package config

import (
	"time"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

// Config is the root configuration structure for the edge connector.
// It contains the HTTP server, the policy artifact source, the sandbox
// limits and the telemetry settings.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Policy configures where the policy artifact comes from and how
	// changes to it are picked up.
	Policy PolicyConfig `yaml:"policy"`

	// Sandbox bounds every policy evaluation.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Telemetry contains logging, metrics, and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address the server listens on.
	// Default: "127.0.0.1:3000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the size of an evaluation request body.
	// Default: 65536
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// MemoryTargetMB is the memory footprint the /memory endpoint reports
	// against.
	// Default: 15
	MemoryTargetMB uint64 `yaml:"memory_target_mb"`
}

// PolicyConfig contains configuration for the policy artifact.
type PolicyConfig struct {
	// Path is the WebAssembly artifact loaded at startup and on reload.
	// Default: "./policies/default.wasm"
	Path string `yaml:"path"`

	// Watch enables reloading when the artifact changes on disk.
	// Default: true
	Watch bool `yaml:"watch"`

	// Debounce collapses bursts of file events into one reload.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`

	// PollSchedule is an optional cron expression for periodic reload
	// attempts, useful where file events are not delivered (network
	// mounts, some container volumes). Empty disables polling.
	// Example: "*/5 * * * *"
	PollSchedule string `yaml:"poll_schedule"`

	// MaxArtifactBytes rejects larger artifacts at the read stage.
	// Default: 16777216 (16MiB)
	MaxArtifactBytes int64 `yaml:"max_artifact_bytes"`
}

// SandboxConfig contains the limits of one evaluation.
type SandboxConfig struct {
	// MemoryPages caps the linear memory of a policy instance, in 64KiB
	// pages.
	// Default: 1
	MemoryPages uint32 `yaml:"memory_pages"`

	// FuelBudget is the number of instructions one evaluation may execute.
	// Default: 1000000
	FuelBudget int64 `yaml:"fuel_budget"`

	// Timeout is the wall-clock ceiling of one evaluation. It is a
	// backstop; fuel_budget is the limit that normally stops a guest.
	// Default: 100ms
	Timeout time.Duration `yaml:"timeout"`

	// MaxLogBytes bounds the guest log output captured per evaluation.
	// Default: 4096
	MaxLogBytes int `yaml:"max_log_bytes"`

	// MaxInputBytes rejects larger inputs before the sandbox is entered.
	// Default: 65536
	MaxInputBytes int `yaml:"max_input_bytes"`

	// Engine selects the wasm engine.
	// Options: "interpreter", "compiler"
	// Default: "interpreter"
	Engine string `yaml:"engine"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the Prometheus endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "edge"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "connector"
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service name in traces.
	// Default: "edgeconnector"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for trace exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// SandboxLimits converts the sandbox section into engine limits.
func (c *Config) SandboxLimits() *sandbox.Config {
	return &sandbox.Config{
		MemoryPages:   c.Sandbox.MemoryPages,
		FuelBudget:    c.Sandbox.FuelBudget,
		Timeout:       c.Sandbox.Timeout,
		MaxLogBytes:   c.Sandbox.MaxLogBytes,
		MaxInputBytes: c.Sandbox.MaxInputBytes,
		Engine:        c.Sandbox.Engine,
	}
}

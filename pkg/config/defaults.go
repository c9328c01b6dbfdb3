package config

import (
	"time"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

// DefaultConfigPath is the configuration file used when none is given.
// It may be absent, in which case defaults apply.
const DefaultConfigPath = "edgeconnector.yaml"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:3000"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = int64(65536)
	DefaultMemoryTargetMB  = uint64(15)

	// Policy defaults
	DefaultPolicyPath       = "./policies/default.wasm"
	DefaultPolicyWatch      = true
	DefaultPolicyDebounce   = 500 * time.Millisecond
	DefaultMaxArtifactBytes = int64(16 << 20)

	// Sandbox defaults
	DefaultMemoryPages    = uint32(1)
	DefaultFuelBudget     = int64(1_000_000)
	DefaultSandboxTimeout = 100 * time.Millisecond
	DefaultMaxLogBytes    = 4096
	DefaultMaxInputBytes  = sandbox.WasmPageSize
	DefaultEngine         = sandbox.EngineInterpreter

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Metrics defaults
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "edge"
	DefaultMetricsSubsystem = "connector"

	// Tracing defaults
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "edgeconnector"
	DefaultTracingTimeout     = 10 * time.Second
)

// Defaults returns a configuration with every field at its default.
// Boolean fields that default to true are only set here, so files are
// decoded on top of this value rather than onto a zero Config.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Policy.Watch = DefaultPolicyWatch
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.MemoryTargetMB == 0 {
		cfg.Server.MemoryTargetMB = DefaultMemoryTargetMB
	}

	// Policy defaults
	if cfg.Policy.Path == "" {
		cfg.Policy.Path = DefaultPolicyPath
	}
	if cfg.Policy.Debounce == 0 {
		cfg.Policy.Debounce = DefaultPolicyDebounce
	}
	if cfg.Policy.MaxArtifactBytes == 0 {
		cfg.Policy.MaxArtifactBytes = DefaultMaxArtifactBytes
	}

	// Sandbox defaults
	if cfg.Sandbox.MemoryPages == 0 {
		cfg.Sandbox.MemoryPages = DefaultMemoryPages
	}
	if cfg.Sandbox.FuelBudget == 0 {
		cfg.Sandbox.FuelBudget = DefaultFuelBudget
	}
	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = DefaultSandboxTimeout
	}
	if cfg.Sandbox.MaxLogBytes == 0 {
		cfg.Sandbox.MaxLogBytes = DefaultMaxLogBytes
	}
	if cfg.Sandbox.MaxInputBytes == 0 {
		cfg.Sandbox.MaxInputBytes = DefaultMaxInputBytes
	}
	if cfg.Sandbox.Engine == "" {
		cfg.Sandbox.Engine = DefaultEngine
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}

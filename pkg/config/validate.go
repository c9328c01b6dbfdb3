package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Has reports whether field is among the failed fields.
func (e ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateSandbox(&cfg.Sandbox)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be positive",
		})
	}

	return errs
}

// validatePolicy validates the policy artifact source.
func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "policy.path",
			Message: "policy path is required",
		})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.debounce",
			Message: "debounce must not be negative",
		})
	}
	if cfg.PollSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PollSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "policy.poll_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.PollSchedule, err),
			})
		}
	}
	if cfg.MaxArtifactBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.max_artifact_bytes",
			Message: "max artifact bytes must be positive",
		})
	}

	return errs
}

// validateSandbox validates evaluation limits.
func validateSandbox(cfg *SandboxConfig) []FieldError {
	var errs []FieldError

	if cfg.MemoryPages == 0 || cfg.MemoryPages > 65536 {
		errs = append(errs, FieldError{
			Field:   "sandbox.memory_pages",
			Message: fmt.Sprintf("memory pages must be between 1 and 65536, got %d", cfg.MemoryPages),
		})
	}
	if cfg.FuelBudget <= 0 {
		errs = append(errs, FieldError{
			Field:   "sandbox.fuel_budget",
			Message: "fuel budget must be positive",
		})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "sandbox.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.MaxLogBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "sandbox.max_log_bytes",
			Message: "max log bytes must not be negative",
		})
	}
	if cfg.MaxInputBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "sandbox.max_input_bytes",
			Message: "max input bytes must be positive",
		})
	}
	validEngines := map[string]bool{sandbox.EngineInterpreter: true, sandbox.EngineCompiler: true}
	if !validEngines[cfg.Engine] {
		errs = append(errs, FieldError{
			Field:   "sandbox.engine",
			Message: fmt.Sprintf("invalid engine %q: must be 'interpreter' or 'compiler'", cfg.Engine),
		})
	}

	return errs
}

// validateTelemetry validates logging, metrics, and tracing configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/' when metrics are enabled",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}

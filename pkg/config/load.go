package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// A missing file is only accepted for DefaultConfigPath, in which case the
// defaults are returned. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention EDGE_SECTION_FIELD (e.g., EDGE_SERVER_LISTEN_ADDRESS) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("EDGE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	envDuration("EDGE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("EDGE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("EDGE_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("EDGE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if val := os.Getenv("EDGE_SERVER_MAX_BODY_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = i
		}
	}
	if val := os.Getenv("EDGE_SERVER_MEMORY_TARGET_MB"); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Server.MemoryTargetMB = u
		}
	}

	// Policy overrides
	if val := os.Getenv("EDGE_POLICY_PATH"); val != "" {
		cfg.Policy.Path = val
	}
	envBool("EDGE_POLICY_WATCH", &cfg.Policy.Watch)
	envDuration("EDGE_POLICY_DEBOUNCE", &cfg.Policy.Debounce)
	if val := os.Getenv("EDGE_POLICY_POLL_SCHEDULE"); val != "" {
		cfg.Policy.PollSchedule = val
	}
	if val := os.Getenv("EDGE_POLICY_MAX_ARTIFACT_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Policy.MaxArtifactBytes = i
		}
	}

	// Sandbox overrides
	if val := os.Getenv("EDGE_SANDBOX_MEMORY_PAGES"); val != "" {
		if u, err := strconv.ParseUint(val, 10, 32); err == nil {
			cfg.Sandbox.MemoryPages = uint32(u)
		}
	}
	if val := os.Getenv("EDGE_SANDBOX_FUEL_BUDGET"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Sandbox.FuelBudget = i
		}
	}
	envDuration("EDGE_SANDBOX_TIMEOUT", &cfg.Sandbox.Timeout)
	if val := os.Getenv("EDGE_SANDBOX_MAX_LOG_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Sandbox.MaxLogBytes = i
		}
	}
	if val := os.Getenv("EDGE_SANDBOX_MAX_INPUT_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Sandbox.MaxInputBytes = i
		}
	}
	if val := os.Getenv("EDGE_SANDBOX_ENGINE"); val != "" {
		cfg.Sandbox.Engine = val
	}

	// Telemetry overrides
	if val := os.Getenv("EDGE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("EDGE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	envBool("EDGE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	if val := os.Getenv("EDGE_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
	envBool("EDGE_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	if val := os.Getenv("EDGE_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("EDGE_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
	envBool("EDGE_TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

package cli

import (
	"errors"
	"fmt"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/policy/store"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitStartup = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// WrapConfigError reports a configuration load failure.
func WrapConfigError(err error) *ConfigError {
	return &ConfigError{Message: err.Error(), Err: err}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to the process exit status. A missing or invalid
// initial policy artifact is ExitStartup wherever it is wrapped.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var se *store.StartupError
	if errors.As(err, &se) {
		return ExitStartup
	}

	var ce *ConfigError
	if errors.As(err, &ce) {
		return ExitConfig
	}

	return ExitFailure
}

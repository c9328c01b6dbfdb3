package store

import (
	"errors"
	"fmt"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

// StageRead is the reload stage that fetches the candidate bytes. The other
// stages are the sandbox compile stages.
const StageRead = "read"

var (
	// ErrNoActiveModule is returned by Acquire before LoadInitial succeeded
	// or after Close.
	ErrNoActiveModule = errors.New("no active policy module")

	// ErrAlreadyLoaded is returned by LoadInitial when a module is active.
	ErrAlreadyLoaded = errors.New("initial policy module already loaded")
)

// StartupError means the service has no valid policy to start with.
type StartupError struct {
	// Path is the artifact path, when loaded from a file.
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to load initial policy %q: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("failed to load initial policy: %v", e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *StartupError) Unwrap() error {
	return e.Cause
}

// Kind returns sandbox.ErrorStartupFatal.
func (e *StartupError) Kind() sandbox.ErrorKind {
	return sandbox.ErrorStartupFatal
}

// ReloadError describes a rejected reload candidate.
type ReloadError struct {
	// Stage is one of read, validate, meter or compile.
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *ReloadError) Error() string {
	return fmt.Sprintf("reload rejected at %s: %v", e.Stage, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ReloadError) Unwrap() error {
	return e.Cause
}

// Kind returns sandbox.ErrorReloadRejected.
func (e *ReloadError) Kind() sandbox.ErrorKind {
	return sandbox.ErrorReloadRejected
}

func reloadError(err error) *ReloadError {
	if stage, ok := sandbox.IsCompileError(err); ok {
		return &ReloadError{Stage: stage, Cause: err}
	}
	return &ReloadError{Stage: sandbox.StageCompile, Cause: err}
}

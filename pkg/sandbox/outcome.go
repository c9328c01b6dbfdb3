package sandbox

import (
	"fmt"
	"time"
)

// ErrorKind classifies failures surfaced by the connector.
type ErrorKind string

const (
	// ErrorStartupFatal means no valid initial artifact exists.
	ErrorStartupFatal ErrorKind = "startup_fatal"

	// ErrorReloadRejected means a candidate artifact was refused and the
	// previous module kept serving.
	ErrorReloadRejected ErrorKind = "reload_rejected"

	// ErrorSandboxFault means the evaluation terminated abnormally.
	ErrorSandboxFault ErrorKind = "sandbox_fault"

	// ErrorMalformedInput means the request was refused before reaching the
	// sandbox.
	ErrorMalformedInput ErrorKind = "malformed_input"
)

// FaultKind names the way an evaluation failed.
type FaultKind string

const (
	FaultFuelExhausted FaultKind = "fuel_exhausted"
	FaultTimeout       FaultKind = "timeout"
	FaultOutOfBounds   FaultKind = "out_of_bounds"
	FaultStackOverflow FaultKind = "stack_overflow"
	FaultTrap          FaultKind = "trap"
	FaultABI           FaultKind = "abi"
	FaultInstantiate   FaultKind = "instantiate"
	FaultInputTooLarge FaultKind = "input_too_large"
)

// Fault describes an abnormal termination.
type Fault struct {
	Kind   FaultKind
	Detail string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Outcome is the result of one evaluation.
type Outcome struct {
	Allowed bool
	Reason  string

	// Error is empty for completed evaluations.
	Error ErrorKind
	Fault *Fault

	FuelConsumed  int64
	RejectedLogs  int
	Duration      time.Duration
	PolicyVersion string
}

// Decision returns "allow", "deny" or "fault".
func (o Outcome) Decision() string {
	switch {
	case o.Fault != nil || o.Error != "":
		return "fault"
	case o.Allowed:
		return "allow"
	default:
		return "deny"
	}
}

// Faulted builds a denied outcome for f. Captured guest text follows the
// fault diagnostic.
func Faulted(f *Fault, captured string) Outcome {
	reason := "sandbox fault: " + f.Error()
	if captured != "" {
		reason += "; " + captured
	}
	return Outcome{Allowed: false, Reason: reason, Error: ErrorSandboxFault, Fault: f}
}

// Rejected builds a denied outcome for input refused before evaluation.
func Rejected(kind ErrorKind, reason string) Outcome {
	return Outcome{Allowed: false, Reason: reason, Error: kind}
}

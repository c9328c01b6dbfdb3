package connector

import (
	"encoding/json"
	"fmt"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

// MalformedInputError means a request body was refused before evaluation.
type MalformedInputError struct {
	Reason string
}

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

// Kind returns sandbox.ErrorMalformedInput.
func (e *MalformedInputError) Kind() sandbox.ErrorKind {
	return sandbox.ErrorMalformedInput
}

// ValidateInput accepts any single JSON value. The sandbox matches raw
// bytes, so the body is not re-encoded.
func ValidateInput(body []byte) error {
	if len(body) == 0 {
		return &MalformedInputError{Reason: "request body is empty"}
	}
	if !json.Valid(body) {
		return &MalformedInputError{Reason: "request body is not valid JSON"}
	}
	return nil
}

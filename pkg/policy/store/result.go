package store

import (
	"fmt"
	"time"
)

// Status is the outcome of a reload attempt.
type Status string

const (
	// StatusLoaded means the candidate is now active.
	StatusLoaded Status = "loaded"

	// StatusUnchanged means the candidate matches the active module.
	StatusUnchanged Status = "unchanged"

	// StatusRejected means the candidate was refused; the previous module
	// is still active.
	StatusRejected Status = "rejected"
)

// ReloadResult reports a reload attempt. It never carries a partially
// applied state: either the candidate is active or nothing changed.
type ReloadResult struct {
	Status Status

	// Version and Digest describe the module active after the attempt.
	Version string
	Digest  string

	// SizeBytes is the candidate size.
	SizeBytes int

	// Previous is the version that was active before a successful swap.
	Previous string

	Duration time.Duration
	Err      *ReloadError
}

// OK reports whether the attempt left a valid candidate active.
func (r ReloadResult) OK() bool {
	return r.Status != StatusRejected
}

// Message is a human readable summary.
func (r ReloadResult) Message() string {
	switch r.Status {
	case StatusLoaded:
		if r.Previous != "" {
			return fmt.Sprintf("policy reloaded: %s -> %s", r.Previous, r.Version)
		}
		return fmt.Sprintf("policy loaded: %s", r.Version)
	case StatusUnchanged:
		return fmt.Sprintf("policy unchanged: %s", r.Version)
	default:
		if r.Err != nil {
			return fmt.Sprintf("policy rejected, keeping %s: %v", r.Version, r.Err)
		}
		return fmt.Sprintf("policy rejected, keeping %s", r.Version)
	}
}

// Info describes the active module and the reload history.
type Info struct {
	Version  string
	Digest   string
	Size     int
	LoadedAt time.Time

	Loaded    uint64
	Unchanged uint64
	Rejected  uint64
	LastError string
}

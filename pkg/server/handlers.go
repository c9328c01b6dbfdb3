package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/policy/store"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/health"
)

// EvaluateResponse is the body of POST /evaluate.
type EvaluateResponse struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason"`
	PolicyVersion string `json:"policy_version"`
	FuelConsumed  int64  `json:"fuel_consumed"`
	DurationUs    int64  `json:"duration_us"`
	Error         string `json:"error,omitempty"`
	Fault         string `json:"fault,omitempty"`
}

// ReloadResponse is the body of POST /reload.
type ReloadResponse struct {
	Success         bool    `json:"success"`
	Status          string  `json:"status"`
	Message         string  `json:"message"`
	SizeBytes       int     `json:"size_bytes"`
	PolicyVersion   string  `json:"policy_version"`
	PreviousVersion string  `json:"previous_version,omitempty"`
	Digest          string  `json:"digest,omitempty"`
	DurationMs      float64 `json:"duration_ms"`
	Stage           string  `json:"stage,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// MemoryResponse is the body of GET /memory.
type MemoryResponse struct {
	MemoryBytes  uint64  `json:"memory_bytes"`
	MemoryKB     float64 `json:"memory_kb"`
	MemoryMB     float64 `json:"memory_mb"`
	TargetMB     uint64  `json:"target_mb"`
	WithinTarget bool    `json:"within_target"`
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /reload", s.handleReload)
	mux.HandleFunc("GET /memory", s.handleMemory)

	mux.Handle("/health", s.health.LivenessHandler())
	mux.Handle("/ready", s.health.ReadinessHandler())
	mux.Handle("/version", health.VersionHandler(
		s.build.Version, s.build.Commit, s.build.BuildTime, s.connector.ActiveVersion,
	))

	if s.metricsHandler != nil {
		mux.Handle("GET "+s.metricsPath, s.metricsHandler)
	}

	return mux
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			out := sandbox.Rejected(sandbox.ErrorMalformedInput,
				fmt.Sprintf("malformed input: request body exceeds %d bytes", mbe.Limit))
			s.writeEvaluation(w, http.StatusRequestEntityTooLarge, out)
			return
		}
		out := sandbox.Rejected(sandbox.ErrorMalformedInput, "malformed input: failed to read request body")
		s.writeEvaluation(w, http.StatusBadRequest, out)
		return
	}

	out := s.connector.EvaluateRequest(r.Context(), body)
	s.writeEvaluation(w, http.StatusOK, out)
}

// writeEvaluation reports denials and faults with the given status; a
// decision is never expressed through the status code alone.
func (s *Server) writeEvaluation(w http.ResponseWriter, code int, out sandbox.Outcome) {
	resp := EvaluateResponse{
		Allowed:       out.Allowed,
		Reason:        out.Reason,
		PolicyVersion: out.PolicyVersion,
		FuelConsumed:  out.FuelConsumed,
		DurationUs:    out.Duration.Microseconds(),
		Error:         string(out.Error),
	}
	if resp.PolicyVersion == "" {
		resp.PolicyVersion, _ = s.connector.ActiveVersion()
	}
	if out.Fault != nil {
		resp.Fault = string(out.Fault.Kind)
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res := s.connector.Reload(r.Context())

	resp := ReloadResponse{
		Success:         res.OK(),
		Status:          string(res.Status),
		Message:         res.Message(),
		SizeBytes:       res.SizeBytes,
		PolicyVersion:   res.Version,
		PreviousVersion: res.Previous,
		Digest:          res.Digest,
		DurationMs:      float64(res.Duration.Microseconds()) / 1000,
	}
	if res.Err != nil {
		resp.Stage = res.Err.Stage
		resp.Error = res.Err.Error()
	}

	code := http.StatusOK
	if res.Status == store.StatusRejected {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	m := s.connector.Memory()
	writeJSON(w, http.StatusOK, MemoryResponse{
		MemoryBytes:  m.Bytes,
		MemoryKB:     m.KB(),
		MemoryMB:     m.MB(),
		TargetMB:     m.TargetMB(),
		WithinTarget: m.WithinTarget,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

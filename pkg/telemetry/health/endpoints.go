package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version of the binary.
	Version string `json:"version"`

	// Commit is the git commit hash.
	Commit string `json:"commit"`

	// BuildTime is when the binary was built.
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build.
	GoVersion string `json:"go_version"`

	// PolicyVersion is the version of the active policy module, if any.
	PolicyVersion string `json:"policy_version,omitempty"`
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
//
// Example response:
//
//	{"status": "ok", "timestamp": "2026-01-20T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
//
// Returns:
//   - 200 OK: every check passed
//   - 503 Service Unavailable: at least one check failed
//
// Example response (not ready):
//
//	{
//	    "status": "not_ready",
//	    "checks": {
//	        "policy": {"status": "unhealthy", "message": "no active policy module"}
//	    },
//	    "timestamp": "2026-01-20T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
// policyVersion may be nil.
func VersionHandler(version, commit, buildTime string, policyVersion func() (string, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
			GoVersion: runtime.Version(),
		}
		if policyVersion != nil {
			if v, ok := policyVersion(); ok {
				info.PolicyVersion = v
			}
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}

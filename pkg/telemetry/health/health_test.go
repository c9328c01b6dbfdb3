package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"default timeout", 0, 5 * time.Second},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Errorf("expected no checks, got %v", checker.ListChecks())
			}
		})
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("policy", func(ctx context.Context) error { return nil })
	checker.RegisterCheck("engine", func(ctx context.Context) error { return nil })

	if got := strings.Join(checker.ListChecks(), ","); got != "engine,policy" {
		t.Errorf("ListChecks() = %q", got)
	}

	checker.UnregisterCheck("engine")
	if got := strings.Join(checker.ListChecks(), ","); got != "policy" {
		t.Errorf("ListChecks() after unregister = %q", got)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{"no checks", nil, StatusReady},
		{
			"all healthy",
			map[string]CheckFunc{
				"a": func(ctx context.Context) error { return nil },
				"b": func(ctx context.Context) error { return nil },
			},
			StatusReady,
		},
		{
			"one unhealthy",
			map[string]CheckFunc{
				"a": func(ctx context.Context) error { return nil },
				"b": func(ctx context.Context) error { return errors.New("broken") },
			},
			StatusNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("status = %q, want %q", status.Status, tt.want)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(50 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusNotReady {
		t.Errorf("expected %q, got %q", StatusNotReady, status.Status)
	}
	if msg := status.Checks["slow"].Message; msg != "health check timeout" {
		t.Errorf("expected timeout message, got %q", msg)
	}
}

func TestPolicyCheck(t *testing.T) {
	var loaded atomic.Bool
	check := PolicyCheck(func() (string, bool) { return "1.0.0", loaded.Load() })

	if err := check(context.Background()); !errors.Is(err, ErrNoActiveModule) {
		t.Errorf("expected ErrNoActiveModule before load, got %v", err)
	}

	loaded.Store(true)
	if err := check(context.Background()); err != nil {
		t.Errorf("expected healthy after load, got %v", err)
	}
}

func TestLivenessHandler(t *testing.T) {
	handler := New(time.Second).LivenessHandler()

	tests := []struct {
		method   string
		wantCode int
		wantBody bool
	}{
		{http.MethodGet, http.StatusOK, true},
		{http.MethodHead, http.StatusOK, false},
		{http.MethodPost, http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(tt.method, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !tt.wantBody {
				return
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != StatusOK {
				t.Errorf("status = %q", status.Status)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	var loaded atomic.Bool
	checker := New(time.Second)
	checker.RegisterCheck("policy", PolicyCheck(func() (string, bool) { return "", loaded.Load() }))
	handler := checker.ReadinessHandler()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before load, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Checks["policy"].Message != ErrNoActiveModule.Error() {
		t.Errorf("unexpected policy check result: %+v", status.Checks["policy"])
	}

	loaded.Store(true)
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after load, got %d", rec.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name   string
		policy func() (string, bool)
		want   string
	}{
		{"no policy func", nil, ""},
		{"no module", func() (string, bool) { return "", false }, ""},
		{"active module", func() (string, bool) { return "2.0.0", true }, "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			VersionHandler("1.0.0", "abc123", "2026-01-01", tt.policy)(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

			var info VersionInfo
			if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if info.Version != "1.0.0" || info.Commit != "abc123" || info.GoVersion == "" {
				t.Errorf("unexpected version info: %+v", info)
			}
			if info.PolicyVersion != tt.want {
				t.Errorf("policy_version = %q, want %q", info.PolicyVersion, tt.want)
			}
		})
	}
}

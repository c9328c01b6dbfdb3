package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/policy/store"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "with field",
			err:  NewConfigError("server.listen_address", "missing required field"),
			want: "config error in server.listen_address: missing required field",
		},
		{
			name: "without field",
			err:  WrapConfigError(errors.New("failed to parse")),
			want: "config error: failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("run", underlyingErr)

	if got := err.Error(); got != "command run failed: underlying error" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CommandError should unwrap to the underlying error")
	}
}

func TestExitCode(t *testing.T) {
	startup := &store.StartupError{Path: "/missing.wasm", Cause: errors.New("no such file")}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitFailure},
		{"config error", WrapConfigError(errors.New("bad yaml")), ExitConfig},
		{"startup error", startup, ExitStartup},
		{"wrapped startup error", NewCommandError("run", fmt.Errorf("load: %w", startup)), ExitStartup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

type textResult struct{ name string }

func (r textResult) Text() string { return "policy " + r.name }

func TestFormatters(t *testing.T) {
	data := map[string]any{"allowed": true, "reason": "admin role"}

	tests := []struct {
		name   string
		format OutputFormat
		data   any
		want   string
	}{
		{"json", FormatJSON, data, "\"allowed\": true"},
		{"text default", "", "hello", "hello\n"},
		{"text uses Texter", FormatText, textResult{name: "1.0.0"}, "policy 1.0.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			if err != nil {
				t.Fatalf("NewFormatter() error = %v", err)
			}

			var buf bytes.Buffer
			if err := f.FormatTo(&buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("FormatTo() = %q, want it to contain %q", buf.String(), tt.want)
			}

			out, err := f.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if !strings.Contains(string(out), strings.TrimSuffix(tt.want, "\n")) {
				t.Errorf("Format() = %q", out)
			}
		})
	}
}

func TestNewFormatter_Unsupported(t *testing.T) {
	_, err := NewFormatter("csv")
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "format" {
		t.Errorf("NewFormatter(csv) error = %v, want ConfigError for format", err)
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, cancel := SetupSignalHandler(context.Background())
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be cancelled initially")
	default:
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send SIGTERM: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Context was not cancelled by SIGTERM")
	}
}

func TestSetupSignalHandler_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := SetupSignalHandler(parent)
	defer cancel()

	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should follow its parent")
	}
}

func TestWaitForShutdown(t *testing.T) {
	sigChan := WaitForShutdown()
	if sigChan == nil {
		t.Fatal("WaitForShutdown() returned nil channel")
	}

	select {
	case <-sigChan:
		t.Error("Signal channel should be empty initially")
	case <-time.After(10 * time.Millisecond):
	}
}

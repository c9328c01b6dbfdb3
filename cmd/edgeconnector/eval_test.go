package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/cli"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

func resetEvalFlags(t *testing.T) {
	t.Helper()
	orig := evalFlags
	t.Cleanup(func() { evalFlags = orig })
	evalFlags.policyPath = ""
	evalFlags.input = ""
	evalFlags.format = "text"
	evalFlags.failOnDeny = false
}

func TestEvalScenarios(t *testing.T) {
	setupPolicy(t)

	tests := []struct {
		name    string
		input   string
		allowed bool
		reason  string
	}{
		{"admin", `{"role":"admin"}`, true, "admin role"},
		{"blocked", `{"blocked":true}`, false, "explicitly blocked"},
		{"operator secret", `{"role":"operator","resource":"secret"}`, false, "operator restricted"},
		{"viewer write", `{"role":"viewer","action":"write"}`, false, "viewer write restricted"},
		{"default", `{}`, true, "default permissive policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEvalFlags(t)
			evalFlags.input = tt.input
			evalFlags.format = "json"

			cmd, out := testCommand(t)
			if err := runEval(cmd, nil); err != nil {
				t.Fatalf("runEval() error = %v", err)
			}

			var got evalResult
			if err := json.Unmarshal(out.Bytes(), &got); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, out.String())
			}
			if got.Allowed != tt.allowed || got.Reason != tt.reason {
				t.Errorf("got (%t, %q), want (%t, %q)", got.Allowed, got.Reason, tt.allowed, tt.reason)
			}
			if got.PolicyVersion != "1.0.0" {
				t.Errorf("PolicyVersion = %q, want 1.0.0", got.PolicyVersion)
			}
		})
	}
}

func TestEvalMalformedInput(t *testing.T) {
	setupPolicy(t)
	resetEvalFlags(t)
	evalFlags.input = "not json"

	cmd, out := testCommand(t)
	if err := runEval(cmd, nil); err != nil {
		t.Fatalf("runEval() error = %v", err)
	}
	text := out.String()
	if !strings.HasPrefix(text, "✗ deny") {
		t.Errorf("output = %q, want a deny", text)
	}
	if !strings.Contains(text, string(sandbox.ErrorMalformedInput)) {
		t.Errorf("output = %q, want error kind %q", text, sandbox.ErrorMalformedInput)
	}
}

func TestEvalFailOnDeny(t *testing.T) {
	setupPolicy(t)
	resetEvalFlags(t)
	evalFlags.input = `{"blocked":true}`
	evalFlags.failOnDeny = true

	cmd, _ := testCommand(t)
	err := runEval(cmd, nil)
	if !errors.Is(err, errDenied) {
		t.Fatalf("runEval() error = %v, want errDenied", err)
	}
	if code := cli.ExitCode(err); code != cli.ExitFailure {
		t.Errorf("ExitCode() = %d, want %d", code, cli.ExitFailure)
	}
}

func TestEvalInputForms(t *testing.T) {
	setupPolicy(t)
	dir := t.TempDir()
	file := writeFile(t, dir, "request.json", []byte(`{"role":"admin"}`))

	t.Run("file", func(t *testing.T) {
		resetEvalFlags(t)
		evalFlags.input = "@" + file
		cmd, out := testCommand(t)
		if err := runEval(cmd, nil); err != nil {
			t.Fatalf("runEval() error = %v", err)
		}
		if !strings.HasPrefix(out.String(), "✓ allow: admin role") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("stdin", func(t *testing.T) {
		resetEvalFlags(t)
		evalFlags.input = "-"
		cmd, out := testCommand(t)
		cmd.SetIn(strings.NewReader(`{"blocked":true}`))
		if err := runEval(cmd, nil); err != nil {
			t.Fatalf("runEval() error = %v", err)
		}
		if !strings.HasPrefix(out.String(), "✗ deny: explicitly blocked") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("missing", func(t *testing.T) {
		resetEvalFlags(t)
		cmd, _ := testCommand(t)
		err := runEval(cmd, nil)
		if code := cli.ExitCode(err); code != cli.ExitConfig {
			t.Errorf("ExitCode(%v) = %d, want %d", err, code, cli.ExitConfig)
		}
	})

	t.Run("unreadable file", func(t *testing.T) {
		resetEvalFlags(t)
		evalFlags.input = "@" + filepath.Join(dir, "absent.json")
		cmd, _ := testCommand(t)
		if err := runEval(cmd, nil); err == nil {
			t.Error("runEval() error = nil for a missing input file")
		}
	})
}

func TestEvalMissingArtifact(t *testing.T) {
	setupPolicy(t)
	resetEvalFlags(t)
	evalFlags.input = `{}`
	evalFlags.policyPath = filepath.Join(t.TempDir(), "absent.wasm")

	cmd, _ := testCommand(t)
	err := runEval(cmd, nil)
	if code := cli.ExitCode(err); code != cli.ExitStartup {
		t.Errorf("ExitCode(%v) = %d, want %d", err, code, cli.ExitStartup)
	}
}

func TestEvalUnsupportedFormat(t *testing.T) {
	resetEvalFlags(t)
	evalFlags.input = `{}`
	evalFlags.format = "xml"

	cmd, _ := testCommand(t)
	err := runEval(cmd, nil)
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("ExitCode(%v) = %d, want %d", err, code, cli.ExitConfig)
	}
}

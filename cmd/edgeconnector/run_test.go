package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/cli"
)

func resetRunFlags(t *testing.T) {
	t.Helper()
	orig := runFlags
	t.Cleanup(func() { runFlags = orig })
	runFlags.listenAddress = ""
	runFlags.logLevel = ""
	runFlags.policyPath = ""
	runFlags.dryRun = true
}

func TestRunDryRun(t *testing.T) {
	setupPolicy(t)
	resetRunFlags(t)

	cmd, out := testCommand(t)
	if err := runServer(cmd, nil); err != nil {
		t.Fatalf("runServer() error = %v", err)
	}
	for _, want := range []string{"✓ Policy 1.0.0 loaded", "✓ Configuration valid"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
		want  int
	}{
		{
			name: "missing artifact",
			setup: func(t *testing.T) {
				setupPolicy(t)
				runFlags.policyPath = filepath.Join(t.TempDir(), "absent.wasm")
			},
			want: cli.ExitStartup,
		},
		{
			name: "invalid artifact",
			setup: func(t *testing.T) {
				setupPolicy(t)
				runFlags.policyPath = writeFile(t, t.TempDir(), "bad.wasm", []byte("garbage"))
			},
			want: cli.ExitStartup,
		},
		{
			name: "missing config file",
			setup: func(t *testing.T) {
				setConfig(t, filepath.Join(t.TempDir(), "absent.yaml"))
			},
			want: cli.ExitConfig,
		},
		{
			name: "invalid log level",
			setup: func(t *testing.T) {
				setupPolicy(t)
				runFlags.logLevel = "loud"
			},
			want: cli.ExitConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetRunFlags(t)
			tt.setup(t)

			cmd, _ := testCommand(t)
			err := runServer(cmd, nil)
			if err == nil {
				t.Fatal("runServer() error = nil")
			}
			if got := cli.ExitCode(err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", err, got, tt.want)
			}
		})
	}
}

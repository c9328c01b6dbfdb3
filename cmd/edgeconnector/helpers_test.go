package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/rules"
)

// testCommand returns a bare command whose output is captured.
func testCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

// writeFile writes data under dir and returns the path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
	return path
}

// setupPolicy writes the default artifact and a config pointing at it, and
// sets cfgFile for the duration of the test.
func setupPolicy(t *testing.T) (artifactPath string) {
	t.Helper()
	dir := t.TempDir()
	artifactPath = writeFile(t, dir, "policy.wasm", rules.MustCompile(rules.Default()))
	cfg := "policy:\n  path: " + artifactPath + "\n  watch: false\ntelemetry:\n  metrics:\n    enabled: false\n"
	setConfig(t, writeFile(t, dir, "edgeconnector.yaml", []byte(cfg)))
	return artifactPath
}

func setConfig(t *testing.T, path string) {
	t.Helper()
	orig := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = orig })
}

// defaultRulesYAML returns the default rule set as YAML.
func defaultRulesYAML(t *testing.T) []byte {
	t.Helper()
	data, err := rules.Default().Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return data
}

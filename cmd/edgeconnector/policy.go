package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/cli"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/rules"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

var policyFlags struct {
	output   string
	artifact string
	format   string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Build and check policy artifacts",
	Long: `Build and check policy artifacts.

A rule set is an ordered YAML list of substring rules with an optional
refinement per rule and a fallback decision. It compiles to a WebAssembly
module implementing the guest ABI that the sandbox loads.

Subcommands:
  build   - Compile a rule set into a policy artifact
  inspect - Describe an artifact and check it against the sandbox limits
  test    - Run a rule set's test cases through the sandbox

Examples:
  # Compile the default rule set
  edgeconnector policy build policies/default.yaml

  # Check an artifact before deploying it
  edgeconnector policy inspect policies/default.wasm

  # Run the rule set tests against a prebuilt artifact
  edgeconnector policy test policies/default.yaml --artifact policies/default.wasm`,
}

var policyBuildCmd = &cobra.Command{
	Use:   "build <rules.yaml>",
	Short: "Compile a rule set into a policy artifact",
	Long: `Compile a rule set into a policy artifact.

The artifact is written to a temporary file and renamed into place, so a
running connector watching the output path never sees a partial write.

Examples:
  # Write policies/default.wasm
  edgeconnector policy build policies/default.yaml

  # Choose the output path
  edgeconnector policy build rules.yaml -o /var/lib/edgeconnector/policy.wasm`,
	Args: cobra.ExactArgs(1),
	RunE: buildPolicy,
}

var policyInspectCmd = &cobra.Command{
	Use:   "inspect <artifact.wasm>",
	Short: "Describe a policy artifact",
	Long: `Describe a policy artifact: its version, digest, imports, exports and
memory, and whether the sandbox accepts it under the configured limits.

Exits with status 1 when the artifact would be rejected.

Examples:
  # Human readable report
  edgeconnector policy inspect policies/default.wasm

  # JSON report
  edgeconnector policy inspect policies/default.wasm --format json`,
	Args: cobra.ExactArgs(1),
	RunE: inspectPolicy,
}

var policyTestCmd = &cobra.Command{
	Use:   "test <rules.yaml>",
	Short: "Run a rule set's test cases through the sandbox",
	Long: `Run the test cases embedded in a rule set through the sandbox.

Each case is evaluated by the compiled artifact and by the rule set directly.
A case fails when the sandbox disagrees with the expectation or with the
direct evaluation.

Examples:
  # Compile and test
  edgeconnector policy test policies/default.yaml

  # Test a prebuilt artifact against the rule set it came from
  edgeconnector policy test policies/default.yaml --artifact policies/default.wasm`,
	Args: cobra.ExactArgs(1),
	RunE: testPolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyBuildCmd)
	policyCmd.AddCommand(policyInspectCmd)
	policyCmd.AddCommand(policyTestCmd)

	policyBuildCmd.Flags().StringVarP(&policyFlags.output, "output", "o", "", "artifact path (default: rule set path with .wasm)")
	policyTestCmd.Flags().StringVar(&policyFlags.artifact, "artifact", "", "prebuilt artifact to test instead of compiling")
	policyCmd.PersistentFlags().StringVarP(&policyFlags.format, "format", "f", "text", "output format (text, json)")
}

func buildPolicy(cmd *cobra.Command, args []string) error {
	rs, err := rules.Load(args[0])
	if err != nil {
		return cli.NewCommandError("policy build", err)
	}
	artifact, err := rules.Compile(rs)
	if err != nil {
		return cli.NewCommandError("policy build", err)
	}

	output := policyFlags.output
	if output == "" {
		output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".wasm"
	}
	if err := writeAtomic(output, artifact); err != nil {
		return cli.NewCommandError("policy build", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Built %s (version %s, %d bytes, sha256 %s)\n",
		output, rs.Version, len(artifact), sandbox.Digest(artifact))
	return nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("failed to set artifact mode: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

func inspectPolicy(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(policyFlags.format))
	if err != nil {
		return err
	}

	artifact, err := os.ReadFile(args[0])
	if err != nil {
		return cli.NewCommandError("policy inspect", err)
	}

	engine, err := commandEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close(context.Background())

	report, err := engine.Inspect(cmdContext(cmd), artifact)
	if err != nil {
		return cli.NewCommandError("policy inspect", err)
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Valid {
		return cli.NewCommandError("policy inspect", fmt.Errorf("artifact rejected at %s stage", report.Stage))
	}
	return nil
}

// caseResult is one line of a policy test report.
type caseResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason"`
	Expected bool   `json:"expected_allowed"`
	Problem  string `json:"problem,omitempty"`
	Fuel     int64  `json:"fuel_consumed"`
}

type testReport struct {
	Version string       `json:"version"`
	Cases   []caseResult `json:"cases"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
}

// Text implements cli.Texter.
func (r *testReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rule set %s\n", r.Version)
	for _, c := range r.Cases {
		mark := "✓"
		if !c.Passed {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s (fuel %d)\n", mark, c.Name, c.Fuel)
		if c.Problem != "" {
			fmt.Fprintf(&b, "      %s\n", c.Problem)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", r.Passed, r.Failed)
	return b.String()
}

func testPolicy(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(policyFlags.format))
	if err != nil {
		return err
	}

	rs, err := rules.Load(args[0])
	if err != nil {
		return cli.NewCommandError("policy test", err)
	}
	if len(rs.Tests) == 0 {
		return cli.NewConfigError("tests", fmt.Sprintf("%s has no test cases", args[0]))
	}

	var artifact []byte
	if policyFlags.artifact != "" {
		artifact, err = os.ReadFile(policyFlags.artifact)
	} else {
		artifact, err = rules.Compile(rs)
	}
	if err != nil {
		return cli.NewCommandError("policy test", err)
	}

	engine, err := commandEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close(context.Background())

	ctx := cmdContext(cmd)
	m, err := engine.Compile(ctx, artifact)
	if err != nil {
		return cli.NewCommandError("policy test", err)
	}
	defer m.Close(context.Background())

	report := runCases(ctx, engine, m, rs)
	if err := formatter.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.NewCommandError("policy test", fmt.Errorf("%d of %d cases failed", report.Failed, len(report.Cases)))
	}
	return nil
}

func runCases(ctx context.Context, engine *sandbox.Engine, m *sandbox.Module, rs *rules.RuleSet) *testReport {
	report := &testReport{Version: m.Version}
	for _, tc := range rs.Tests {
		out := engine.Evaluate(ctx, m, []byte(tc.Input))
		want := rs.Evaluate([]byte(tc.Input))

		res := caseResult{
			Name:     tc.Name,
			Allowed:  out.Allowed,
			Reason:   out.Reason,
			Expected: tc.Allowed,
			Fuel:     out.FuelConsumed,
		}
		switch {
		case out.Fault != nil:
			res.Problem = fmt.Sprintf("sandbox fault %s: %s", out.Fault.Kind, out.Fault.Detail)
		case out.Allowed != tc.Allowed:
			res.Problem = fmt.Sprintf("allowed = %t, want %t", out.Allowed, tc.Allowed)
		case tc.Reason != "" && out.Reason != tc.Reason:
			res.Problem = fmt.Sprintf("reason = %q, want %q", out.Reason, tc.Reason)
		case out.Allowed != want.Allowed || out.Reason != want.Reason:
			res.Problem = fmt.Sprintf("sandbox (%t, %q) disagrees with rule set (%t, %q)",
				out.Allowed, out.Reason, want.Allowed, want.Reason)
		}
		res.Passed = res.Problem == ""
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Cases = append(report.Cases, res)
	}
	return report
}

// commandEngine creates a sandbox engine with the configured limits.
func commandEngine(cmd *cobra.Command) (*sandbox.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := commandLogger(cmd)
	if err != nil {
		return nil, err
	}
	engine, err := sandbox.NewEngine(cmdContext(cmd), cfg.SandboxLimits(), logger)
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}
	return engine, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

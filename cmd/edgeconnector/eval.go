package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/cli"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/connector"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/logging"
)

var evalFlags struct {
	policyPath string
	input      string
	format     string
	failOnDeny bool
}

// errDenied is returned by eval --fail-on-deny for a denied request.
var errDenied = errors.New("request denied")

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate one request against the policy artifact",
	Long: `Evaluate one request against the configured policy artifact using the
same sandbox limits as the server. No reload sources are started.

The input is a JSON document given inline, read from a file with @path, or
read from standard input with -.

Examples:
  # Evaluate an inline request
  edgeconnector eval --input '{"role":"admin"}'

  # Evaluate a request file against another artifact
  edgeconnector eval --policy ./build/policy.wasm --input @request.json

  # Use in scripts: exit status 1 on deny
  echo '{"blocked":true}' | edgeconnector eval --input - --fail-on-deny`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalFlags.policyPath, "policy", "p", "", "override policy artifact path")
	evalCmd.Flags().StringVarP(&evalFlags.input, "input", "i", "", "request JSON, @file, or - for stdin")
	evalCmd.Flags().StringVarP(&evalFlags.format, "format", "f", "text", "output format (text, json)")
	evalCmd.Flags().BoolVar(&evalFlags.failOnDeny, "fail-on-deny", false, "exit with status 1 when the request is denied")
}

// evalResult is the printed form of one evaluation.
type evalResult struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason"`
	PolicyVersion string `json:"policy_version"`
	FuelConsumed  int64  `json:"fuel_consumed"`
	DurationUs    int64  `json:"duration_us"`
	Error         string `json:"error,omitempty"`
}

func newEvalResult(out sandbox.Outcome) evalResult {
	return evalResult{
		Allowed:       out.Allowed,
		Reason:        out.Reason,
		PolicyVersion: out.PolicyVersion,
		FuelConsumed:  out.FuelConsumed,
		DurationUs:    out.Duration.Microseconds(),
		Error:         string(out.Error),
	}
}

// Text implements cli.Texter.
func (r evalResult) Text() string {
	var b strings.Builder
	if r.Allowed {
		b.WriteString("✓ allow")
	} else {
		b.WriteString("✗ deny")
	}
	fmt.Fprintf(&b, ": %s\n", r.Reason)
	if r.Error != "" {
		fmt.Fprintf(&b, "  error:   %s\n", r.Error)
	}
	fmt.Fprintf(&b, "  policy:  %s\n", r.PolicyVersion)
	fmt.Fprintf(&b, "  fuel:    %d\n", r.FuelConsumed)
	fmt.Fprintf(&b, "  elapsed: %dµs", r.DurationUs)
	return b.String()
}

func runEval(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(evalFlags.format))
	if err != nil {
		return err
	}

	body, err := readInput(evalFlags.input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evalFlags.policyPath != "" {
		cfg.Policy.Path = evalFlags.policyPath
	}
	cfg.Policy.Watch = false
	cfg.Policy.PollSchedule = ""

	logger, err := commandLogger(cmd)
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	conn, err := connector.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.Background()) }()

	out := conn.EvaluateRequest(ctx, body)
	if out.PolicyVersion == "" {
		out.PolicyVersion, _ = conn.ActiveVersion()
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), newEvalResult(out)); err != nil {
		return err
	}

	if evalFlags.failOnDeny && !out.Allowed {
		return cli.NewCommandError("eval", errDenied)
	}
	return nil
}

// readInput resolves the --input forms.
func readInput(input string, stdin io.Reader) ([]byte, error) {
	switch {
	case input == "":
		return nil, cli.NewConfigError("input", "--input is required")
	case input == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	case strings.HasPrefix(input, "@"):
		data, err := os.ReadFile(input[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return data, nil
	default:
		return []byte(input), nil
	}
}

// commandLogger logs warnings to stderr, or everything with --verbose.
func commandLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:  level,
		Format: "text",
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}
	return logger, nil
}

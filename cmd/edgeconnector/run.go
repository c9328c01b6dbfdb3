package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/cli"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/connector"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/server"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/logging"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/metrics"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	policyPath    string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the edge connector server",
	Long: `Start the edge connector server with the specified configuration.

The initial policy artifact must load before the server listens. A missing or
invalid artifact exits with status 3 and an invalid configuration with
status 2.

Examples:
  # Start with default config
  edgeconnector run

  # Start with custom config
  edgeconnector run --config /etc/edgeconnector/edgeconnector.yaml

  # Override listen address and artifact
  edgeconnector run --listen 0.0.0.0:3000 --policy ./build/policy.wasm

  # Validate config and artifact without starting the server
  edgeconnector run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVarP(&runFlags.policyPath, "policy", "p", "", "override policy artifact path")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and artifact without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.policyPath != "" {
		cfg.Policy.Path = runFlags.policyPath
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return cli.WrapConfigError(err)
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    os.Stderr,
	})
	if err != nil {
		return cli.WrapConfigError(err)
	}
	slog.SetDefault(logger)

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	conn, err := connector.New(ctx, cfg, logger,
		connector.WithMetrics(collector),
		connector.WithTracers(tracer.Tracer),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			slog.Error("connector close failed", "error", err)
		}
	}()

	printBanner(out, cfg, conn)

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	if err := conn.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	opts := []server.Option{
		server.WithTracer(tracer.Tracer("server")),
		server.WithBuildInfo(server.BuildInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		}),
	}
	if collector.Enabled() {
		opts = append(opts, server.WithMetricsHandler(cfg.Telemetry.Metrics.Path, collector.Handler()))
	}
	srv := server.NewServer(&cfg.Server, conn, logger, opts...)

	fmt.Fprintf(out, "✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if collector.Enabled() {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(w io.Writer, cfg *config.Config, conn *connector.Connector) {
	fmt.Fprintf(w, "Nano WASM Edge Connector v%s\n", Version)
	fmt.Fprintf(w, "Loading configuration from: %s\n", cfgFile)
	fmt.Fprintln(w, "✓ Configuration loaded")

	if info, ok := conn.Info(); ok {
		fmt.Fprintf(w, "✓ Policy %s loaded from %s (%d bytes)\n", info.Version, cfg.Policy.Path, info.Size)
	}

	var sources []string
	if cfg.Policy.Watch {
		sources = append(sources, "watch")
	}
	if cfg.Policy.PollSchedule != "" {
		sources = append(sources, "poll "+cfg.Policy.PollSchedule)
	}
	slog.Debug("policy reload sources", "sources", sources, "path", cfg.Policy.Path)
}

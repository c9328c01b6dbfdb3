package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/cli"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "edgeconnector",
	Short: "Nano WASM Edge Connector - sandboxed policy evaluation",
	Long: `Nano WASM Edge Connector evaluates access requests against a policy
compiled to WebAssembly. Every evaluation runs in a fresh instance with a fuel
budget, a memory ceiling and a deadline, and anything other than a completed
allow is a deny.

The policy artifact is reloaded atomically when it changes on disk, on an
optional cron schedule, or on POST /reload. A rejected artifact never replaces
the active one.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the status for its error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads cfgFile with EDGE_* environment overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}
	return cfg, nil
}

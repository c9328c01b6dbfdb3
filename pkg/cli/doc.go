/*
Package cli provides command-line helpers used by the edgeconnector command.

Output Formatting:

Commands print results as text or JSON:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Results that implement Texter control their text rendering.

Exit Codes:

ExitCode maps command errors to process exit statuses: 2 for configuration
errors, 3 when no valid initial policy artifact exists, 1 otherwise.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli

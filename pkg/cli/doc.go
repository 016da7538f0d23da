/*
Package cli provides command-line helpers for the janitor command.

Output Formatting:

Command results print as aligned text tables or JSON:

	formatter, err := cli.NewFormatter(cli.FormatText)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, statuses)

Counts in text output are grouped by thousands.

Progress Reporting:

The tick command reports deletions against a scan estimate:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(estimate) // -1 when unknown
	progress.Update(processed)
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

ExitCode maps engine errors to distinct process exit codes so scripts can
tell a conflict from a missing category.
*/
package cli

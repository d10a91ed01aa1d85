/*
Package cli provides command-line helpers for the mixpolicy command.

Output Formatting:

Command results can be rendered as text, JSON, YAML or CSV. Tabular results
implement Tabular so that the text and CSV formatters can lay them out:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Progress Reporting:

Batch evaluations report throughput on stderr:

	progress := cli.NewProgressReporter(os.Stderr, "streams")
	progress.Start(int64(len(streams)))
	for i := range streams {
		// evaluate
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
NotifyReload delivers SIGHUP so a running server can reload its mix file.

Exit Codes:

Commands return an *ExitError to choose a process exit code; ExitCode maps
any error to the code main should exit with.
*/
package cli

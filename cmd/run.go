package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tcm/internal/executor"
	"tcm/internal/orchestrator"
	"tcm/internal/testcase"
	"tcm/pkg/logging"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <test-case-id>...",
		Short: "Run the named test cases concurrently",
		Long: `Run executes the named test cases with a fixed pool of workers.

Each test case is looked up under --path as <id>.yaml, or by scanning every
YAML document when no such file exists. Execution logs are written to
--output as <id>_execution_log.json together with run_summary.json.

Examples:
  tcm run TC001 TC002
  tcm run TC001 --retry --max-retries 3 -w 2`,
		Args: minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, flags, args)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRunAllCmd(opts *globalOptions) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Run every test case under --path that matches the tag filters",
		Long: `Run-all loads every test case under --path, selects those matching the
tag filters and runs them concurrently.

Tag filters combine: a test case must carry one of --include-tags (when
given), none of --exclude-tags, and satisfy --tag-expr.

Examples:
  tcm run-all --path testcases
  tcm run-all --tag-expr '(smoke || regression) && !slow' --dynamic-tags
  tcm run-all --include-tags smoke --exclude-tags slow -w 8`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, flags, nil)
		},
	}
	flags.register(cmd)
	return cmd
}

func runBatch(cmd *cobra.Command, opts *globalOptions, flags *runFlags, ids []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	cfg = flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	filter, err := flags.filter(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color := isTerminal(out)

	var stepReporter executor.StepReporter
	if cfg.Verbose {
		stepReporter = executor.NewConsoleReporter(out, color, true)
	}
	exec := executor.New(cfg, stepReporter, nil)

	progress := newBatchProgress(out, color, !flags.noProgress, !flags.noProgress && !cfg.Verbose)
	orch := orchestrator.New(exec, testcase.NewStore(cfg.StorageRoot), progress)

	ctx, stop := interruptContext(cmd.Context(), cmd.ErrOrStderr())
	defer stop()

	selection := orchestrator.Selection{IDs: ids, Filter: filter}
	progress.start()
	report, err := orch.RunAll(ctx, selection, orchestrator.OptionsFromConfig(cfg))
	progress.stop()
	if err != nil {
		return err
	}

	if path, err := report.WriteSummary(cfg.OutputDir); err != nil {
		logging.Error("CLI", err, "Failed to write run summary")
	} else {
		logging.Debug("CLI", "Run summary written to %s", path)
	}

	if len(report.Cases) == 0 {
		fmt.Fprintln(out, "No test cases matched the selection.")
		return nil
	}
	printBatchSummary(out, report, color)

	if !report.AllPassed() {
		return &ExitError{
			Code: ExitCodeFailure,
			Err:  fmt.Errorf("%d of %d test cases did not pass", report.Total()-report.Passed, report.Total()),
		}
	}
	return nil
}

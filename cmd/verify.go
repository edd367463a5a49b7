package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tcm/internal/tcerr"
	"tcm/internal/testcase"
	"tcm/internal/verifier"
)

// reportFlags are shared by the verify subcommands that produce a report.
type reportFlags struct {
	testCaseDir string
	format      string
	output      string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.testCaseDir, "test-case-dir", "", "Directory holding the test case definitions (default is the configured path)")
	cmd.Flags().StringVar(&f.format, "format", string(verifier.FormatText), "Report format: text, json, yaml or junit")
	cmd.Flags().StringVar(&f.output, "output", "", "Write the report to this file instead of stdout")
}

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify execution logs against test case definitions",
		Long: `Verify compares recorded step outcomes with the expectations declared in
the test case definitions.

Two log formats are accepted and detected automatically:
  - execution logs written by tcm (<id>_execution_log.json)
  - text lines of the form
    [<RFC3339>] TestCase: <id>, Sequence: <n>, Step: <n>, Success: <bool>, Result: <text>, Output: <text>

The exit code is 0 when every verified step passed and 1 otherwise.`,
	}

	cmd.AddCommand(newVerifySingleCmd(opts))
	cmd.AddCommand(newVerifyBatchCmd(opts))
	cmd.AddCommand(newVerifyParseLogCmd())
	return cmd
}

func newVerifySingleCmd(opts *globalOptions) *cobra.Command {
	var (
		logPath    string
		testCaseID string
		flags      reportFlags
	)

	cmd := &cobra.Command{
		Use:   "single",
		Short: "Verify one log for one test case",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if logPath == "" {
				return tcerr.Configuration("--log is required")
			}
			log := verifier.LoadLog(logPath, testCaseID)
			return verifyLogs(cmd, opts, &flags, []verifier.Log{log})
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "", "Log file to verify")
	cmd.Flags().StringVar(&testCaseID, "test-case-id", "", "Test case id (default is derived from the execution log file name)")
	flags.register(cmd)
	return cmd
}

func newVerifyBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		logPaths []string
		flags    reportFlags
	)

	cmd := &cobra.Command{
		Use:   "batch [log-file]...",
		Short: "Verify many logs and aggregate the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append(append([]string{}, logPaths...), args...)
			if len(paths) == 0 {
				return tcerr.Configuration("no log files given, use --logs or positional arguments")
			}

			logs := make([]verifier.Log, 0, len(paths))
			for _, path := range paths {
				logs = append(logs, verifier.LoadLog(path, ""))
			}
			return verifyLogs(cmd, opts, &flags, logs)
		},
	}

	cmd.Flags().StringSliceVar(&logPaths, "logs", nil, "Log files to verify (comma-separated or repeated)")
	flags.register(cmd)
	return cmd
}

func newVerifyParseLogCmd() *cobra.Command {
	var (
		logPath    string
		testCaseID string
	)

	cmd := &cobra.Command{
		Use:   "parse-log",
		Short: "Print the records parsed from a log as JSON",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if logPath == "" {
				return tcerr.Configuration("--log is required")
			}
			log := verifier.LoadLog(logPath, testCaseID)
			if log.Err != nil {
				return log.Err
			}

			records := log.Records
			if records == nil {
				records = []verifier.Record{}
			}
			data, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal records: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "", "Log file to parse")
	cmd.Flags().StringVar(&testCaseID, "test-case-id", "", "Test case id override for execution logs, filter for text logs")
	return cmd
}

func verifyLogs(cmd *cobra.Command, opts *globalOptions, flags *reportFlags, logs []verifier.Log) error {
	format, err := verifier.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	dir := flags.testCaseDir
	if dir == "" {
		cfg, err := loadConfig(cmd, opts)
		if err != nil {
			return err
		}
		dir = cfg.StorageRoot
	}

	store := testcase.NewStore(dir)
	report := verifier.Verify(logs, store.Find)

	data, err := verifier.Render(report, format)
	if err != nil {
		return err
	}

	if flags.output == "" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	} else {
		if err := os.WriteFile(flags.output, data, 0644); err != nil {
			return fmt.Errorf("failed to write report %s: %w", flags.output, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", flags.output)
	}

	if !report.AllPassed() {
		return &ExitError{
			Code: ExitCodeFailure,
			Err:  fmt.Errorf("verification failed: %d steps failed, %d test cases failed", report.Steps.Failed, report.Cases.Failed),
		}
	}
	return nil
}

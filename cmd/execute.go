package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tcm/internal/config"
	"tcm/internal/executor"
	"tcm/internal/testcase"
)

func newExecuteCmd(opts *globalOptions) *cobra.Command {
	var (
		output         string
		commandTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "execute <test-case.yaml>",
		Short: "Execute a single test case file step by step",
		Long: `Execute runs every step of one test case in order, printing a line per
step. Manual steps are announced and skipped. The first failing step stops
the test case. The execution log is written to --output.

Example:
  tcm execute testcases/TC001.yaml --output results`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg = cfg.WithOverrides(func(c *config.Config) {
				if cmd.Flags().Changed("output") {
					c.OutputDir = output
				}
				if cmd.Flags().Changed("command-timeout") {
					c.CommandTimeout = commandTimeout
				}
			})
			if err := cfg.Validate(); err != nil {
				return err
			}

			tc, err := testcase.LoadFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			exec := executor.New(cfg, executor.NewConsoleReporter(out, isTerminal(out), false), nil)

			ctx, stop := interruptContext(cmd.Context(), cmd.ErrOrStderr())
			defer stop()

			result, err := exec.Execute(ctx, *tc)
			if result != nil && result.LogPath != "" {
				fmt.Fprintf(out, "Execution log: %s\n", result.LogPath)
			}
			if err != nil {
				return &ExitError{Code: ExitCodeFailure, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", config.DefaultOutputDir, "Directory receiving the execution log")
	cmd.Flags().DurationVar(&commandTimeout, "command-timeout", 0, "Kill a step command after this long (0 disables)")
	return cmd
}

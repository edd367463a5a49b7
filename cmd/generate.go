package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tcm/internal/compiler"
	"tcm/internal/testcase"
)

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate <test-case.yaml>",
		Short: "Print a standalone bash script for a test case",
		Long: `Generate compiles a test case into a bash script that runs the same
steps, performs the same checks and writes the same execution log as
'tcm execute'. The log directory defaults to the configured output
directory and can be changed at run time with TCM_OUTPUT_DIR.

Regex captures and /regex/ output patterns are evaluated by bash [[ =~ ]],
which uses POSIX extended regular expressions instead of the RE2 syntax
used by 'tcm execute'. Patterns relying on \d, \w, lazy quantifiers or
other Perl-style features behave differently in the script.

Examples:
  tcm generate testcases/TC001.yaml > TC001.sh
  tcm generate testcases/TC001.yaml -o TC001.sh`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			tc, err := testcase.LoadFile(args[0])
			if err != nil {
				return err
			}

			plan, err := compiler.Compile(*tc)
			if err != nil {
				return err
			}

			script, err := compiler.RenderScript(plan, compiler.ScriptOptions{
				Shell:     cfg.Shell,
				OutputDir: cfg.OutputDir,
			})
			if err != nil {
				return err
			}

			if outputFile == "" {
				fmt.Fprint(cmd.OutOrStdout(), script)
				return nil
			}
			if err := os.WriteFile(outputFile, []byte(script), 0755); err != nil {
				return fmt.Errorf("failed to write script %s: %w", outputFile, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Script written to %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the script to this file instead of stdout")
	return cmd
}

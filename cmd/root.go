package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tcm/internal/config"
	"tcm/internal/tcerr"
	"tcm/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates every selected test case or step passed.
	ExitCodeSuccess = 0
	// ExitCodeFailure indicates at least one test case or step failed.
	ExitCodeFailure = 1
	// ExitCodeConfiguration indicates invalid flags, config or selection.
	ExitCodeConfiguration = 2
)

// ExitError ends the command with a specific exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	debug      bool
}

// rootCmd represents the base command for the tcm application.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "tcm",
		Short: "Run, orchestrate and verify YAML-defined test cases",
		Long: `tcm executes test cases described in YAML documents. Each test case is a
list of sequences of shell command steps and manual steps, with expected
results and verification expressions.

It runs single test cases, runs many concurrently with retries and tag
based selection, generates standalone bash scripts, and verifies execution
logs against the definitions with text, JSON, YAML or JUnit reports.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if opts.debug {
				level = logging.LevelDebug
			}
			logging.InitForCLI(level, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", fmt.Sprintf("config file (default is ./%s when present)", config.DefaultConfigFile))
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to stderr")

	// unknown or malformed flags are configuration errors
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return tcerr.Configuration("%v", err)
	})

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newRunAllCmd(opts))
	cmd.AddCommand(newExecuteCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSelfUpdateCmd())

	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tcm version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	if tcerr.IsConfiguration(err) || tcerr.Is(err, tcerr.CodeTagExpressionSyntax) {
		return ExitCodeConfiguration
	}

	return ExitCodeFailure
}

// loadConfig reads the config file named by --config, or the default file
// when it exists. Logging is re-initialised from the file's log level unless
// --debug was given.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (config.Config, error) {
	path := opts.configFile
	required := path != ""
	if path == "" {
		path = config.DefaultConfigFile
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return config.Config{}, err
	}

	if !opts.debug && cfg.LogLevel != "" {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return config.Config{}, tcerr.Configuration("invalid log_level in %s: %v", path, err)
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
	}
	return cfg, nil
}

// exactArgs is cobra.ExactArgs reporting a configuration error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return tcerr.Configuration("%v", err)
		}
		return nil
	}
}

// minimumArgs is cobra.MinimumNArgs reporting a configuration error.
func minimumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return tcerr.Configuration("%v", err)
		}
		return nil
	}
}

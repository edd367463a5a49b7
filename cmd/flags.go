package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tcm/internal/config"
	"tcm/internal/tags"
)

// runFlags are the flags shared by run and run-all. Flags only override the
// config file when they are set explicitly.
type runFlags struct {
	path           string
	output         string
	workers        int
	retry          bool
	maxRetries     int
	includeTags    string
	excludeTags    string
	tagExpr        string
	dynamicTags    bool
	commandTimeout time.Duration
	verbose        bool
	noProgress     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "path", ".", "Directory searched for test case YAML files")
	cmd.Flags().StringVar(&f.output, "output", config.DefaultOutputDir, "Directory receiving execution logs and the run summary")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", config.DefaultWorkers, "Number of test cases run concurrently")
	cmd.Flags().BoolVar(&f.retry, "retry", false, "Re-run failed test cases")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", config.DefaultMaxAttempts, "Total attempts per test case when --retry is set")
	cmd.Flags().StringVar(&f.includeTags, "include-tags", "", "Comma-separated tags; select test cases carrying any of them")
	cmd.Flags().StringVar(&f.excludeTags, "exclude-tags", "", "Comma-separated tags; skip test cases carrying any of them")
	cmd.Flags().StringVar(&f.tagExpr, "tag-expr", "", "Boolean tag expression, e.g. '(smoke || regression) && !slow'")
	cmd.Flags().BoolVar(&f.dynamicTags, "dynamic-tags", false, "Add derived tags such as automated-only and has-manual-steps")
	cmd.Flags().DurationVar(&f.commandTimeout, "command-timeout", 0, "Kill a step command after this long (0 disables)")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Print every step, prefixed by the test case id")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "Disable the progress spinner and per test case lines")
}

// apply overlays explicitly set flags on cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	changed := cmd.Flags().Changed
	return cfg.WithOverrides(func(c *config.Config) {
		if changed("path") {
			c.StorageRoot = f.path
		}
		if changed("output") {
			c.OutputDir = f.output
		}
		if changed("workers") {
			c.Workers = f.workers
		}
		if changed("retry") {
			c.Retry.Enabled = f.retry
		}
		if changed("max-retries") {
			c.Retry.MaxAttempts = f.maxRetries
		}
		if changed("dynamic-tags") {
			c.DynamicTags = f.dynamicTags
		}
		if changed("command-timeout") {
			c.CommandTimeout = f.commandTimeout
		}
		if changed("verbose") {
			c.Verbose = f.verbose
		}
	})
}

// filter builds the tag filter. An invalid expression is a configuration error.
func (f *runFlags) filter(cfg config.Config) (tags.Filter, error) {
	expr, err := tags.Parse(f.tagExpr)
	if err != nil {
		return tags.Filter{}, err
	}

	filter := tags.Filter{
		Include:    tags.SplitList(f.includeTags),
		Exclude:    tags.SplitList(f.excludeTags),
		Expression: expr,
	}
	if cfg.DynamicTags {
		filter.Rules = tags.DefaultRules
	}
	return filter, nil
}

// interruptContext cancels the returned context on SIGINT or SIGTERM. Running
// steps are allowed to finish.
func interruptContext(parent context.Context, out io.Writer) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(out, "\nReceived interrupt signal, letting running steps finish...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

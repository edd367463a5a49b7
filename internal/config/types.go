// Package config holds the run configuration shared by the executor,
// orchestrator and verifier.
//
// A Config is built once at startup from defaults, an optional YAML file and
// command line flags, then passed by value. Nothing reads configuration from
// globals.
package config

import "time"

// Config is the immutable run configuration.
type Config struct {
	// StorageRoot is the directory searched for test case documents
	StorageRoot string `yaml:"path"`

	// OutputDir receives execution logs and run summaries
	OutputDir string `yaml:"output"`

	// Shell runs step commands and verification expressions
	Shell string `yaml:"shell"`

	// Workers is the number of concurrent test case workers
	Workers int `yaml:"workers"`

	// Retry controls re-running failed test cases
	Retry RetryConfig `yaml:"retry"`

	// CommandTimeout bounds a single step command; zero disables it
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// DynamicTags enables the built-in derived tags during selection
	DynamicTags bool `yaml:"dynamic_tags"`

	// Verbose prints per-step lines during batch runs
	Verbose bool `yaml:"verbose"`

	// LogLevel is the diagnostic log level name
	LogLevel string `yaml:"log_level"`
}

// RetryConfig is the per test case retry policy.
type RetryConfig struct {
	// Enabled turns on re-enqueueing of failed test cases
	Enabled bool `yaml:"enabled"`

	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int `yaml:"max_attempts"`
}

// WithOverrides returns a copy of c with fn applied.
func (c Config) WithOverrides(fn func(*Config)) Config {
	fn(&c)
	return c
}

package config

const (
	// DefaultConfigFile is looked up in the working directory when no --config is given
	DefaultConfigFile = "tcm.yaml"

	// DefaultWorkers is the default worker pool size
	DefaultWorkers = 4

	// DefaultMaxAttempts is the default total attempts when retry is enabled
	DefaultMaxAttempts = 3

	// DefaultShell runs commands; verification expressions use [[ ]] and need bash
	DefaultShell = "bash"

	// DefaultOutputDir receives execution logs
	DefaultOutputDir = "output"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		StorageRoot: ".",
		OutputDir:   DefaultOutputDir,
		Shell:       DefaultShell,
		Workers:     DefaultWorkers,
		Retry: RetryConfig{
			Enabled:     false,
			MaxAttempts: DefaultMaxAttempts,
		},
		LogLevel: "warn",
	}
}

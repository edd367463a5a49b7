// Package logging provides the structured, subsystem-tagged logger used by
// every tcm package.
//
// It is a thin layer over log/slog: callers name the subsystem that produced
// the message and the package formats it with a text handler on the writer
// chosen at startup.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Orchestrator", "dispatching %d test cases", n)
//	logging.Debug("Executor", "running step %d of sequence %d", step, seq)
//	logging.Error("Verifier", err, "failed to parse log %s", path)
//
// # Subsystems
//
//   - Config: configuration loading and validation
//   - Loader: test case discovery under the storage root
//   - Executor: command execution and execution log writes
//   - Orchestrator: worker pool, retries and state transitions
//   - Verifier: log parsing and report generation
//
// Console status lines such as [RUN] and [PASS] are reporter output and are
// not routed through this package.
//
// Before InitForCLI is called only warnings and errors are written, to stderr.
// All functions are safe for concurrent use.
package logging

// Package orchestrator runs many test cases concurrently with a fixed worker
// pool, per test case retries and tag based selection.
//
// # Selection
//
// A Selection names test cases explicitly, in the order given, or asks for
// every test case in the store that matches a tags.Filter. Unknown ids are a
// configuration error and stop the run before anything executes.
//
// # Lifecycle
//
// Every selected test case moves through
//
//	pending -> running -> passed | failed | retrying
//	retrying -> running
//
// and each transition is streamed to a ProgressReporter as it happens. A
// failed attempt is re-enqueued at the tail of the work queue until
// RetryPolicy.MaxAttempts is reached; the execution log of the last attempt
// is the one left on disk. Compile errors and interrupted attempts are never
// retried.
//
// # Workers
//
// Workers pull jobs from a single mutex and condition variable queue. A panic
// inside a worker fails only the test case it was running. The queue shuts
// down when every test case is terminal.
//
// # Interruption
//
// Cancelling the context stops dispatch. Running test cases finish their
// current step, undispatched ones are reported as not executed and the
// BatchReport is marked interrupted.
//
// # Reporting
//
// The BatchReport lists test cases in selection order and can be written as
// run_summary.json next to the execution logs.
package orchestrator

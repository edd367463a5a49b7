package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tcm/internal/config"
	"tcm/internal/executor"
	"tcm/internal/tags"
	"tcm/internal/tcerr"
	"tcm/internal/testcase"
	"tcm/pkg/logging"
)

const subsystem = "Orchestrator"

// Executor runs one attempt of a test case.
type Executor interface {
	Execute(ctx context.Context, tc testcase.TestCase) (*executor.Result, error)
}

// Store locates test case definitions.
type Store interface {
	LoadAll() ([]testcase.TestCase, error)
	Find(id string) (*testcase.TestCase, error)
}

// RetryPolicy controls re-running failed test cases.
type RetryPolicy struct {
	Enabled bool

	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int
}

// Attempts returns the effective number of attempts.
func (p RetryPolicy) Attempts() int {
	if !p.Enabled || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Options configure one run.
type Options struct {
	Workers int
	Retry   RetryPolicy
}

// OptionsFromConfig derives run options from cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Workers: cfg.Workers,
		Retry: RetryPolicy{
			Enabled:     cfg.Retry.Enabled,
			MaxAttempts: cfg.Retry.MaxAttempts,
		},
	}
}

// Selection names the test cases to run: explicit ids in the given order, or
// every test case under the store matched by Filter.
type Selection struct {
	IDs    []string
	Filter tags.Filter
}

// Orchestrator coordinates concurrent test case execution.
type Orchestrator struct {
	exec     Executor
	store    Store
	progress ProgressReporter
}

// New creates an orchestrator. A nil progress reporter discards transitions.
func New(exec Executor, store Store, progress ProgressReporter) *Orchestrator {
	if progress == nil {
		progress = nopProgress{}
	}
	return &Orchestrator{
		exec:     exec,
		store:    store,
		progress: progress,
	}
}

// Resolve turns a selection into an ordered list of test cases. Unknown ids
// are a configuration error; repeated ids are run once.
func (o *Orchestrator) Resolve(sel Selection) ([]testcase.TestCase, error) {
	if len(sel.IDs) == 0 {
		all, err := o.store.LoadAll()
		if err != nil {
			return nil, err
		}
		if sel.Filter.IsEmpty() {
			logging.Debug(subsystem, "No tag filter given, selecting every test case")
		}
		selected := sel.Filter.Apply(all)
		logging.Info(subsystem, "Selected %d of %d test cases", len(selected), len(all))
		return selected, nil
	}

	seen := make(map[string]bool)
	var selected []testcase.TestCase
	for _, id := range sel.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		tc, err := o.store.Find(id)
		if err != nil {
			if tcerr.Is(err, tcerr.CodeTestCaseNotFound) {
				return nil, tcerr.Configuration("test case %q not found", id)
			}
			return nil, err
		}
		selected = append(selected, *tc)
	}
	return selected, nil
}

// uniqueTestCases drops every test case whose id already appeared earlier.
func uniqueTestCases(testCases []testcase.TestCase) []testcase.TestCase {
	seen := make(map[string]bool, len(testCases))
	unique := make([]testcase.TestCase, 0, len(testCases))
	for _, tc := range testCases {
		if seen[tc.ID] {
			logging.Warn(subsystem, "Test case %s selected more than once, running it once", tc.ID)
			continue
		}
		seen[tc.ID] = true
		unique = append(unique, tc)
	}
	return unique
}

// RunAll resolves sel and runs it. The report is returned even when the run
// was interrupted; the error is only set for selection failures.
func (o *Orchestrator) RunAll(ctx context.Context, sel Selection, opts Options) (*BatchReport, error) {
	testCases, err := o.Resolve(sel)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, testCases, opts), nil
}

// Run executes testCases with opts.Workers workers and returns the report in
// input order. A test case id that repeats is run once, at its first position.
func (o *Orchestrator) Run(ctx context.Context, testCases []testcase.TestCase, opts Options) *BatchReport {
	testCases = uniqueTestCases(testCases)

	workers := opts.Workers
	if workers < 1 {
		workers = config.DefaultWorkers
	}
	maxAttempts := opts.Retry.Attempts()

	report := &BatchReport{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now(),
		Workers:     workers,
		MaxAttempts: maxAttempts,
	}

	ids := make([]string, len(testCases))
	for i, tc := range testCases {
		ids[i] = tc.ID
	}

	r := &run{
		orchestrator: o,
		testCases:    testCases,
		maxAttempts:  maxAttempts,
		queue:        newWorkQueue(),
		tracker:      newStateTracker(ids),
	}

	logging.Info(subsystem, "Run %s: %d test cases, %d workers, %d attempts each", report.RunID, len(testCases), workers, maxAttempts)

	for i := range testCases {
		r.emit(i, StatePending, 0, nil, nil)
		r.queue.Add(job{index: i, attempt: 1})
	}

	if len(testCases) > 0 {
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				logging.Info(subsystem, "Run %s interrupted, waiting for running test cases", report.RunID)
				r.queue.Shutdown()
			case <-stop:
			}
		}()

		var g errgroup.Group
		for w := 0; w < min(workers, len(testCases)); w++ {
			workerID := w + 1
			g.Go(func() error {
				r.work(ctx, workerID)
				return nil
			})
		}
		_ = g.Wait()
		close(stop)
	}

	if undispatched := r.queue.Drain(); len(undispatched) > 0 {
		logging.Info(subsystem, "%d test cases were not dispatched", len(undispatched))
	}

	report.Interrupted = ctx.Err() != nil
	for i, tc := range testCases {
		report.add(r.caseReport(i, tc))
	}
	report.Duration = time.Since(report.StartedAt)
	report.DurationSeconds = report.Duration.Seconds()

	logging.Info(subsystem, "Run %s finished: %d passed, %d failed, %d not executed", report.RunID, report.Passed, report.Failed, report.NotExecuted)
	return report
}

// run is the mutable state of one Run call.
type run struct {
	orchestrator *Orchestrator
	testCases    []testcase.TestCase
	maxAttempts  int
	queue        *workQueue
	tracker      *stateTracker
}

func (r *run) work(ctx context.Context, workerID int) {
	for {
		j, ok := r.queue.Get(ctx)
		if !ok {
			logging.Debug(subsystem, "Worker %d stopping", workerID)
			return
		}

		tc := r.testCases[j.index]
		logging.Debug(subsystem, "Worker %d executing %s (attempt %d/%d)", workerID, tc.ID, j.attempt, r.maxAttempts)

		r.emit(j.index, StateRunning, j.attempt, nil, nil)
		result, err := r.execute(ctx, tc)
		r.queue.Done(j)

		r.settle(ctx, j, result, err)
	}
}

// settle records the outcome of one attempt and re-enqueues retries.
func (r *run) settle(ctx context.Context, j job, result *executor.Result, err error) {
	tc := r.testCases[j.index]

	switch {
	case err == nil:
		r.finish(j.index, StatePassed, j.attempt, result, nil)

	case r.retryable(ctx, j, err):
		logging.Info(subsystem, "%s failed on attempt %d/%d, retrying: %v", tc.ID, j.attempt, r.maxAttempts, err)
		r.emit(j.index, StateRetrying, j.attempt, result, err)
		if !r.queue.Add(job{index: j.index, attempt: j.attempt + 1}) {
			// dispatch stopped after the check; reported as failed
			logging.Debug(subsystem, "Retry of %s dropped, run is stopping", tc.ID)
		}

	default:
		if r.maxAttempts > 1 && j.attempt >= r.maxAttempts {
			err = tcerr.RetryExhausted(tc.ID, j.attempt, err)
		}
		r.finish(j.index, StateFailed, j.attempt, result, err)
	}
}

func (r *run) retryable(ctx context.Context, j job, err error) bool {
	if j.attempt >= r.maxAttempts || ctx.Err() != nil {
		return false
	}
	// compile errors and interruptions fail the same way every time
	return !tcerr.Is(err, tcerr.CodeMalformedStep) && !tcerr.IsInterrupted(err)
}

func (r *run) finish(index int, state State, attempt int, result *executor.Result, err error) {
	remaining := r.emit(index, state, attempt, result, err)
	if remaining == 0 {
		r.queue.Shutdown()
	}
}

// emit applies a transition and forwards it to the progress reporter. It
// returns how many test cases are not yet terminal.
func (r *run) emit(index int, to State, attempt int, result *executor.Result, err error) int {
	tc := r.testCases[index]
	now := time.Now()

	from, remaining, terr := r.tracker.transition(tc.ID, to, func(cs *caseState) {
		switch to {
		case StateRunning:
			cs.Attempts = attempt
			if cs.Started.IsZero() {
				cs.Started = now
			}
		case StatePassed, StateFailed, StateRetrying:
			cs.Result = result
			cs.Err = err
			cs.Finished = now
		}
	})
	if terr != nil {
		logging.Error(subsystem, terr, "Dropped state change")
		return remaining
	}

	r.orchestrator.progress.Transition(Transition{
		TestCaseID:  tc.ID,
		From:        from,
		To:          to,
		Attempt:     attempt,
		MaxAttempts: r.maxAttempts,
		Time:        now,
		Result:      result,
		Err:         err,
	})
	return remaining
}

// execute runs one attempt, converting a panic into a failed attempt of this
// test case only.
func (r *run) execute(ctx context.Context, tc testcase.TestCase) (result *executor.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while executing %s: %v", tc.ID, p)
			logging.Error(subsystem, err, "Recovered worker panic\n%s", debug.Stack())
			result = &executor.Result{
				TestCaseID: tc.ID,
				Status:     executor.StatusFailed,
				Error:      err.Error(),
			}
		}
	}()

	return r.orchestrator.exec.Execute(ctx, tc)
}

func (r *run) caseReport(index int, tc testcase.TestCase) CaseReport {
	cs := r.tracker.snapshot(tc.ID)

	c := CaseReport{
		TestCaseID: tc.ID,
		State:      cs.State,
		Attempts:   cs.Attempts,
	}
	if !cs.Started.IsZero() && !cs.Finished.IsZero() {
		c.DurationSeconds = cs.Finished.Sub(cs.Started).Seconds()
	}
	if cs.Result != nil {
		c.LogPath = cs.Result.LogPath
		c.Failure = cs.Result.Failure
	}
	if cs.Err != nil {
		c.Error = cs.Err.Error()
	}

	switch cs.State {
	case StatePassed:
		c.Outcome = OutcomePassed
	case StateFailed:
		c.Outcome = OutcomeFailed
	case StatePending:
		c.Outcome = OutcomeNotExecuted
	default:
		// running or retrying after an interrupted run
		c.Outcome = OutcomeFailed
		if c.Error == "" {
			c.Error = "run interrupted"
		}
	}
	return c
}

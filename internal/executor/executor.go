// Package executor runs a compiled test case step by step and records its
// execution log.
//
// Steps run strictly in definition order in a shell, each in its own process
// group. Captured variables are exported to every later step. A failing step
// stops the test case; manual steps are announced and skipped.
package executor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tcm/internal/compiler"
	"tcm/internal/config"
	"tcm/internal/tcerr"
	"tcm/internal/testcase"
	"tcm/pkg/logging"
)

const subsystem = "Executor"

// Status is the final state of one execution.
type Status string

const (
	StatusPassed      Status = "passed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Result is the outcome of executing one test case once.
type Result struct {
	TestCaseID    string        `json:"test_case_id"`
	Status        Status        `json:"status"`
	Steps         []StepResult  `json:"steps"`
	ManualSkipped int           `json:"manual_skipped"`
	Failure       *StepResult   `json:"failure,omitempty"`
	LogPath       string        `json:"log_path,omitempty"`
	Entries       []LogEntry    `json:"-"`
	StartTime     time.Time     `json:"start_time"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// Passed reports whether every executed step passed.
func (r *Result) Passed() bool {
	return r.Status == StatusPassed
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	TestCaseID   string            `json:"-"`
	Sequence     int               `json:"test_sequence"`
	Step         int               `json:"step"`
	Description  string            `json:"description,omitempty"`
	Command      string            `json:"command"`
	ExitCode     int               `json:"exit_code"`
	Output       string            `json:"output"`
	Passed       bool              `json:"passed"`
	FailedChecks []string          `json:"failed_checks,omitempty"`
	Captured     map[string]string `json:"captured,omitempty"`
	Duration     time.Duration     `json:"duration"`
}

// Executor runs test cases. It is safe for concurrent use; each Execute call
// keeps its own variables.
type Executor struct {
	shell     string
	outputDir string
	timeout   time.Duration
	baseEnv   []string
	reporter  StepReporter
	logs      LogWriter
}

// New creates an executor from cfg. A nil reporter discards progress and a nil
// log writer writes files.
func New(cfg config.Config, reporter StepReporter, logs LogWriter) *Executor {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if logs == nil {
		logs = FileLogWriter{}
	}
	shell := cfg.Shell
	if shell == "" {
		shell = config.DefaultShell
	}
	return &Executor{
		shell:     shell,
		outputDir: cfg.OutputDir,
		timeout:   cfg.StepTimeout(),
		baseEnv:   os.Environ(),
		reporter:  reporter,
		logs:      logs,
	}
}

// LogPath returns where the execution log of testCaseID is written.
func (e *Executor) LogPath(testCaseID string) string {
	return LogPath(e.outputDir, testCaseID)
}

// Execute compiles and runs tc. The returned Result is never nil. The error
// is non-nil whenever the test case did not pass and carries a tcerr code:
// MALFORMED_STEP, COMMAND_SPAWN_ERROR, STEP_VERIFICATION_FAILURE or
// INTERRUPTED.
//
// Cancelling ctx never kills a running command; the test case stops before
// its next step.
func (e *Executor) Execute(ctx context.Context, tc testcase.TestCase) (*Result, error) {
	result := &Result{
		TestCaseID: tc.ID,
		StartTime:  time.Now(),
		LogPath:    e.LogPath(tc.ID),
	}

	plan, err := compiler.Compile(tc)
	if err != nil {
		logging.Error(subsystem, err, "Cannot compile test case %s", tc.ID)
		return e.finish(result, err, false), err
	}

	logging.Debug(subsystem, "Executing %s: %d command steps, %d manual", tc.ID, len(plan.Units()), plan.ManualCount())
	e.reporter.TestCaseStarted(plan)

	vars := &variables{}
	var runErr error

	for _, entry := range plan.Entries {
		if ctx.Err() != nil {
			runErr = tcerr.Interrupted(tc.ID, ctx.Err())
			break
		}

		if entry.Kind == compiler.KindManual {
			e.reporter.StepSkipped(entry)
			result.ManualSkipped++
			continue
		}

		step, logEntry, err := e.runUnit(entry.Unit, vars)
		result.Steps = append(result.Steps, step)
		result.Entries = append(result.Entries, logEntry)

		if err != nil {
			e.reporter.StepFailed(step)
			failed := step
			result.Failure = &failed
			runErr = err
			break
		}
		e.reporter.StepPassed(step)
	}

	return e.finish(result, runErr, true), runErr
}

func (e *Executor) finish(result *Result, runErr error, writeLog bool) *Result {
	switch {
	case runErr == nil:
		result.Status = StatusPassed
	case tcerr.IsInterrupted(runErr):
		result.Status = StatusInterrupted
		result.Error = runErr.Error()
	default:
		result.Status = StatusFailed
		result.Error = runErr.Error()
	}

	if writeLog {
		if err := e.logs.WriteLog(result.LogPath, result.Entries); err != nil {
			logging.Error(subsystem, err, "Failed to write execution log for %s", result.TestCaseID)
		}
	} else {
		result.LogPath = ""
	}

	result.Duration = time.Since(result.StartTime)
	e.reporter.TestCaseFinished(result)
	return result
}

// runUnit runs one command step: command, captures, then checks.
func (e *Executor) runUnit(unit *compiler.Unit, vars *variables) (StepResult, LogEntry, error) {
	e.reporter.StepStarted(unit)

	res := runShell(e.shell, unit.Command, vars.environ(e.baseEnv), e.timeout)
	output := trimOutput(res.Combined)

	step := StepResult{
		TestCaseID:  unit.TestCaseID,
		Sequence:    unit.Sequence,
		Step:        unit.Step,
		Description: unit.Description,
		Command:     unit.Command,
		ExitCode:    res.ExitCode,
		Output:      output,
		Duration:    res.Duration,
	}
	entry := LogEntry{
		TestSequence: unit.Sequence,
		Step:         unit.Step,
		Command:      unit.Command,
		ExitCode:     res.ExitCode,
		Output:       output,
		Timestamp:    time.Now().Format(time.RFC3339),
	}

	if res.SpawnErr != nil {
		step.FailedChecks = []string{"spawn"}
		return step, entry, tcerr.CommandSpawn(unit.TestCaseID, unit.Sequence, unit.Step, res.SpawnErr)
	}
	if res.TimedOut {
		logging.Warn(subsystem, "%s sequence %d step %d timed out after %s", unit.TestCaseID, unit.Sequence, unit.Step, e.timeout)
	}

	outcome := stepOutcome{exitCode: res.ExitCode, output: output, stdout: trimOutput(res.Stdout), stderr: trimOutput(res.Stderr)}

	for _, capture := range unit.Captures {
		value := e.capture(capture, outcome, vars)
		vars.set(capture.Name, value)
		if step.Captured == nil {
			step.Captured = make(map[string]string)
		}
		step.Captured[capture.Name] = value
	}

	step.FailedChecks = e.evaluate(unit, outcome, vars)
	if len(step.FailedChecks) > 0 {
		return step, entry, tcerr.StepVerification(unit.TestCaseID, unit.Sequence, unit.Step, strings.Join(step.FailedChecks, ", "))
	}

	step.Passed = true
	return step, entry, nil
}

type stepOutcome struct {
	exitCode int
	output   string
	stdout   string
	stderr   string
}

// checkEnv is the environment for captures and checks: the step environment
// plus the outcome variables.
func (e *Executor) checkEnv(outcome stepOutcome, vars *variables) []string {
	code := strconv.Itoa(outcome.exitCode)
	return append(vars.environ(e.baseEnv),
		"EXIT_CODE="+code,
		"RESULT="+code,
		"COMMAND_OUTPUT="+outcome.output,
		"STDOUT="+outcome.stdout,
		"STDERR="+outcome.stderr,
	)
}

func (e *Executor) capture(capture compiler.Capture, outcome stepOutcome, vars *variables) string {
	if capture.Pattern != nil {
		if m := capture.Pattern.FindStringSubmatch(outcome.output); m != nil {
			return m[1]
		}
		logging.Debug(subsystem, "Capture %s did not match output", capture.Name)
		return ""
	}

	res := runShell(e.shell, capture.Command, e.checkEnv(outcome, vars), e.timeout)
	if res.SpawnErr != nil || res.ExitCode != 0 {
		logging.Debug(subsystem, "Capture command for %s exited with %d", capture.Name, res.ExitCode)
	}
	return trimOutput(res.Stdout)
}

// evaluate returns the names of failing checks: "result", "output" and
// "general:<name>".
func (e *Executor) evaluate(unit *compiler.Unit, outcome stepOutcome, vars *variables) []string {
	checks := unit.Checks
	env := e.checkEnv(outcome, vars)
	var failed []string

	resultOK := false
	switch {
	case checks.Result != "":
		resultOK = e.shellCheck(checks.Result, outcome.exitCode, env)
	case checks.ExpectFailure:
		resultOK = outcome.exitCode != 0
	default:
		resultOK = outcome.exitCode == 0
	}
	if !resultOK {
		failed = append(failed, "result")
	}

	outputOK := true
	switch {
	case checks.Output != "":
		outputOK = e.shellCheck(checks.Output, outcome.exitCode, env)
	case checks.OutputPattern != nil:
		outputOK = checks.OutputPattern.Match(outcome.output)
	}
	if !outputOK {
		failed = append(failed, "output")
	}

	for _, cond := range checks.General {
		if !e.shellCheck(cond.Condition, outcome.exitCode, env) {
			failed = append(failed, "general:"+cond.Name)
		}
	}

	return failed
}

// shellCheck evaluates a shell boolean expression with $? primed to exitCode.
func (e *Executor) shellCheck(expr string, exitCode int, env []string) bool {
	script := fmt.Sprintf("(exit %d)\n%s", exitCode, expr)
	res := runShell(e.shell, script, env, e.timeout)
	if res.SpawnErr != nil {
		logging.Warn(subsystem, "Cannot evaluate check %q: %v", expr, res.SpawnErr)
		return false
	}
	return res.ExitCode == 0
}

// variables holds captured values in capture order.
type variables struct {
	names  []string
	values map[string]string
}

func (v *variables) set(name, value string) {
	if v.values == nil {
		v.values = make(map[string]string)
	}
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// environ appends the captured variables to base. Later duplicates win in
// os/exec, so captures shadow inherited variables.
func (v *variables) environ(base []string) []string {
	env := make([]string, 0, len(base)+len(v.names))
	env = append(env, base...)
	for _, name := range v.names {
		env = append(env, name+"="+v.values[name])
	}
	return env
}

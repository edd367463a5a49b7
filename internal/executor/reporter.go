package executor

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"tcm/internal/compiler"
	tcstrings "tcm/pkg/strings"
)

// StepReporter receives execution progress for one test case.
// Implementations must be safe for concurrent use by several executors.
type StepReporter interface {
	TestCaseStarted(plan *compiler.Plan)
	StepStarted(unit *compiler.Unit)
	StepPassed(step StepResult)
	StepFailed(step StepResult)
	StepSkipped(entry compiler.Entry)
	TestCaseFinished(result *Result)
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) TestCaseStarted(*compiler.Plan) {}
func (NopReporter) StepStarted(*compiler.Unit)     {}
func (NopReporter) StepPassed(StepResult)          {}
func (NopReporter) StepFailed(StepResult)          {}
func (NopReporter) StepSkipped(compiler.Entry)     {}
func (NopReporter) TestCaseFinished(*Result)       {}

// ConsoleReporter prints [RUN], [PASS], [FAIL] and [SKIP] lines.
type ConsoleReporter struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	prefixID bool
}

// NewConsoleReporter creates a console reporter writing to out. With
// prefixID every line starts with the test case id, for interleaved batch
// output.
func NewConsoleReporter(out io.Writer, color, prefixID bool) *ConsoleReporter {
	return &ConsoleReporter{
		out:      out,
		color:    color,
		prefixID: prefixID,
	}
}

func (r *ConsoleReporter) tag(name string, colors text.Colors) string {
	label := "[" + name + "]"
	if r.color {
		return colors.Sprint(label)
	}
	return label
}

func (r *ConsoleReporter) write(testCaseID string, lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := ""
	if r.prefixID {
		prefix = "[" + testCaseID + "] "
	}
	for _, line := range lines {
		fmt.Fprintf(r.out, "%s%s\n", prefix, line)
	}
}

func stepLabel(sequence, step int, description string) string {
	label := fmt.Sprintf("seq %d step %d", sequence, step)
	if description != "" {
		label += ": " + description
	}
	return label
}

// TestCaseStarted prints the test case header.
func (r *ConsoleReporter) TestCaseStarted(plan *compiler.Plan) {
	header := "=== " + plan.TestCaseID
	if plan.Description != "" {
		header += ": " + tcstrings.TruncateLine(plan.Description, tcstrings.DefaultLineMaxLen)
	}
	r.write(plan.TestCaseID, header)
}

// StepStarted prints a [RUN] line.
func (r *ConsoleReporter) StepStarted(unit *compiler.Unit) {
	r.write(unit.TestCaseID, fmt.Sprintf("%s %s", r.tag("RUN", text.Colors{text.FgCyan}), stepLabel(unit.Sequence, unit.Step, unit.Description)))
}

// StepPassed prints a [PASS] line.
func (r *ConsoleReporter) StepPassed(step StepResult) {
	r.write(step.TestCaseID, fmt.Sprintf("%s %s", r.tag("PASS", text.Colors{text.FgGreen}), stepLabel(step.Sequence, step.Step, step.Description)))
}

// StepFailed prints a [FAIL] line followed by the command, exit code,
// failed checks and the tail of the output.
func (r *ConsoleReporter) StepFailed(step StepResult) {
	lines := []string{
		fmt.Sprintf("%s %s", r.tag("FAIL", text.Colors{text.FgRed, text.Bold}), stepLabel(step.Sequence, step.Step, step.Description)),
		"  command: " + tcstrings.TruncateLine(step.Command, 120),
		fmt.Sprintf("  exit code: %d", step.ExitCode),
	}
	if len(step.FailedChecks) > 0 {
		lines = append(lines, "  failed check: "+strings.Join(step.FailedChecks, ", "))
	}
	if step.Output != "" {
		lines = append(lines, "  output:")
		lines = append(lines, tcstrings.Indent(tcstrings.TailLines(step.Output, tcstrings.DefaultDetailMaxLines), "    "))
	}
	r.write(step.TestCaseID, lines...)
}

// StepSkipped prints a [SKIP] line for a manual step.
func (r *ConsoleReporter) StepSkipped(entry compiler.Entry) {
	r.write(entry.TestCaseID, fmt.Sprintf("%s %s (manual step)", r.tag("SKIP", text.Colors{text.FgYellow}), stepLabel(entry.Sequence, entry.Step, entry.Description)))
}

// TestCaseFinished prints the one-line summary.
func (r *ConsoleReporter) TestCaseFinished(result *Result) {
	status := strings.ToUpper(string(result.Status))
	if r.color {
		switch result.Status {
		case StatusPassed:
			status = text.FgGreen.Sprint(status)
		default:
			status = text.FgRed.Sprint(status)
		}
	}
	r.write(result.TestCaseID, fmt.Sprintf("%s: %s (%d executed, %d manual skipped, %s)",
		result.TestCaseID, status, len(result.Steps), result.ManualSkipped, result.Duration.Round(time.Millisecond)))
}

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tcm/internal/orchestrator"
	tcstrings "tcm/pkg/strings"
)

// batchProgress prints one line per finished or retried test case and keeps
// a spinner with the running totals while a batch is in progress.
type batchProgress struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	lines   bool
	spinner *spinner.Spinner

	total    int
	finished int
	running  int
}

func newBatchProgress(out io.Writer, color, lines, spin bool) *batchProgress {
	p := &batchProgress{out: out, color: color, lines: lines}
	if spin && isTerminal(out) {
		p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	}
	return p
}

func (p *batchProgress) start() {
	if p.spinner == nil {
		return
	}
	p.spinner.Suffix = " Starting..."
	p.spinner.Start()
}

func (p *batchProgress) stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

func (p *batchProgress) paint(s string, colors text.Colors) string {
	if !p.color {
		return s
	}
	return colors.Sprint(s)
}

// Transition implements orchestrator.ProgressReporter.
func (p *batchProgress) Transition(t orchestrator.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var line string
	switch t.To {
	case orchestrator.StatePending:
		p.total++
	case orchestrator.StateRunning:
		p.running++
	case orchestrator.StateRetrying:
		p.running--
		line = fmt.Sprintf("🔁 %s %s (attempt %d/%d): %s", t.TestCaseID, p.paint("retrying", text.Colors{text.FgYellow}),
			t.Attempt, t.MaxAttempts, errorLine(t.Err))
	case orchestrator.StatePassed:
		p.running--
		p.finished++
		line = fmt.Sprintf("✅ %s %s (attempt %d/%d)", t.TestCaseID, p.paint("passed", text.Colors{text.FgGreen}), t.Attempt, t.MaxAttempts)
	case orchestrator.StateFailed:
		p.running--
		p.finished++
		line = fmt.Sprintf("❌ %s %s (attempt %d/%d): %s", t.TestCaseID, p.paint("failed", text.Colors{text.FgRed}),
			t.Attempt, t.MaxAttempts, errorLine(t.Err))
	}

	if line != "" && p.lines {
		if p.spinner != nil {
			p.spinner.Stop()
		}
		fmt.Fprintln(p.out, line)
		if p.spinner != nil {
			p.spinner.Start()
		}
	}
	if p.spinner != nil {
		p.spinner.Lock()
		p.spinner.Suffix = fmt.Sprintf(" %d/%d done, %d running", p.finished, p.total, p.running)
		p.spinner.Unlock()
	}
}

func errorLine(err error) string {
	if err == nil {
		return "unknown error"
	}
	return tcstrings.TruncateLine(err.Error(), 120)
}

// printBatchSummary renders the per test case table and the totals.
func printBatchSummary(out io.Writer, report *orchestrator.BatchReport, color bool) {
	paint := func(s string, c text.Color) string {
		if !color {
			return s
		}
		return c.Sprint(s)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"TEST CASE", "OUTCOME", "ATTEMPTS", "DURATION", "DETAIL"})

	for _, c := range report.Cases {
		outcome := string(c.Outcome)
		switch c.Outcome {
		case orchestrator.OutcomePassed:
			outcome = paint(outcome, text.FgGreen)
		case orchestrator.OutcomeFailed:
			outcome = paint(outcome, text.FgRed)
		default:
			outcome = paint(outcome, text.FgYellow)
		}

		detail := c.Error
		if c.Failure != nil {
			detail = fmt.Sprintf("seq %d step %d: %s", c.Failure.Sequence, c.Failure.Step, c.Error)
		}
		t.AppendRow(table.Row{
			c.TestCaseID,
			outcome,
			c.Attempts,
			(time.Duration(c.DurationSeconds * float64(time.Second))).Round(time.Millisecond),
			tcstrings.TruncateLine(detail, tcstrings.DefaultLineMaxLen),
		})
	}
	t.Render()

	fmt.Fprintf(out, "\n%s %d passed, %d failed, %d not executed of %d (%.1f%%) in %s\n",
		paint("Total:", text.FgHiBlue),
		report.Passed, report.Failed, report.NotExecuted, report.Total(),
		report.SuccessRate(), report.Duration.Round(time.Millisecond))
	if report.Interrupted {
		fmt.Fprintln(out, paint("Run was interrupted; test cases not started are reported as not_executed.", text.FgYellow))
	}
}

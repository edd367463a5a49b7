// Package compiler turns a test case definition into an ordered execution
// plan.
//
// Compilation is pure and deterministic. It validates every step, compiles
// capture and expected-output patterns once, and resolves the default checks
// for steps that declare no verification expressions.
package compiler

import (
	"regexp"

	"tcm/internal/matcher"
	"tcm/internal/testcase"
)

// Kind distinguishes executable entries from manual notices.
type Kind int

const (
	KindCommand Kind = iota
	KindManual
)

// Plan is the compiled form of a test case.
type Plan struct {
	TestCaseID  string
	Description string
	Entries     []Entry
}

// Entry is one step of the plan in definition order.
type Entry struct {
	Kind         Kind
	TestCaseID   string
	Sequence     int
	SequenceName string
	Step         int
	Description  string

	// Unit is set for KindCommand entries only
	Unit *Unit
}

// Unit is an executable step.
type Unit struct {
	TestCaseID  string
	Sequence    int
	Step        int
	Description string
	Command     string
	Captures    []Capture
	Checks      Checks
	Expected    testcase.Expected
}

// Capture extracts a variable after the command ran. Exactly one of Command
// and Pattern is set.
type Capture struct {
	Name    string
	Command string
	Pattern *regexp.Regexp
}

// Checks decide whether a unit passed. A step passes iff the result check,
// the output check and every general condition hold.
type Checks struct {
	// Result is a shell boolean expression; empty means the default exit code check
	Result string

	// ExpectFailure inverts the default exit code check
	ExpectFailure bool

	// Output is a shell boolean expression; it takes precedence over OutputPattern
	Output string

	// OutputPattern is the default output check derived from expected.output
	OutputPattern *matcher.Pattern

	// General are named conditions that must all hold
	General []testcase.GeneralCondition
}

// Units returns the executable units in order.
func (p *Plan) Units() []*Unit {
	var units []*Unit
	for _, entry := range p.Entries {
		if entry.Kind == KindCommand {
			units = append(units, entry.Unit)
		}
	}
	return units
}

// ManualCount returns the number of manual entries.
func (p *Plan) ManualCount() int {
	n := 0
	for _, entry := range p.Entries {
		if entry.Kind == KindManual {
			n++
		}
	}
	return n
}

package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"tcm/internal/matcher"
	"tcm/internal/tcerr"
	"tcm/internal/testcase"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames are set by the executor for every check and cannot be captured.
var reservedNames = map[string]bool{
	"EXIT_CODE":      true,
	"RESULT":         true,
	"COMMAND_OUTPUT": true,
	"STDOUT":         true,
	"STDERR":         true,
}

// Compile validates tc and produces its execution plan.
func Compile(tc testcase.TestCase) (*Plan, error) {
	plan := &Plan{
		TestCaseID:  tc.ID,
		Description: tc.Description,
	}

	for _, seq := range tc.Sequences {
		seen := make(map[int]bool)
		for _, step := range seq.Steps {
			if seen[step.Step] {
				return nil, tcerr.MalformedStep(tc.ID, seq.ID, step.Step, "duplicate step number")
			}
			seen[step.Step] = true

			entry, err := compileStep(tc.ID, seq, step)
			if err != nil {
				return nil, err
			}
			plan.Entries = append(plan.Entries, entry)
		}
	}

	return plan, nil
}

func compileStep(testCaseID string, seq testcase.TestSequence, step testcase.Step) (Entry, error) {
	entry := Entry{
		TestCaseID:   testCaseID,
		Sequence:     seq.ID,
		SequenceName: seq.Name,
		Step:         step.Step,
		Description:  step.Description,
	}

	malformed := func(format string, args ...interface{}) error {
		return tcerr.MalformedStep(testCaseID, seq.ID, step.Step, format, args...)
	}

	hasCommand := strings.TrimSpace(step.Command) != ""
	switch {
	case step.Manual && hasCommand:
		return entry, malformed("manual step must not have a command")
	case step.Manual:
		entry.Kind = KindManual
		return entry, nil
	case !hasCommand:
		return entry, malformed("automated step requires a command")
	}

	unit := &Unit{
		TestCaseID:  testCaseID,
		Sequence:    seq.ID,
		Step:        step.Step,
		Description: step.Description,
		Command:     step.Command,
		Expected:    step.Expected,
	}

	for _, cv := range step.CaptureVars {
		capture, err := compileCapture(cv)
		if err != nil {
			return entry, malformed("%v", err)
		}
		unit.Captures = append(unit.Captures, capture)
	}

	checks, err := compileChecks(step)
	if err != nil {
		return entry, malformed("%v", err)
	}
	unit.Checks = checks

	entry.Kind = KindCommand
	entry.Unit = unit
	return entry, nil
}

func compileCapture(cv testcase.CaptureVar) (Capture, error) {
	if !identifierPattern.MatchString(cv.Name) {
		return Capture{}, fmt.Errorf("capture variable name %q is not a valid shell identifier", cv.Name)
	}
	if reservedNames[cv.Name] {
		return Capture{}, fmt.Errorf("capture variable name %q is reserved", cv.Name)
	}

	hasCommand := strings.TrimSpace(cv.Command) != ""
	hasCapture := cv.Capture != ""
	switch {
	case hasCommand && hasCapture:
		return Capture{}, fmt.Errorf("capture variable %s must set only one of command and capture", cv.Name)
	case !hasCommand && !hasCapture:
		return Capture{}, fmt.Errorf("capture variable %s must set command or capture", cv.Name)
	case hasCommand:
		return Capture{Name: cv.Name, Command: cv.Command}, nil
	}

	re, err := regexp.Compile(cv.Capture)
	if err != nil {
		return Capture{}, fmt.Errorf("capture variable %s: invalid regex: %v", cv.Name, err)
	}
	if re.NumSubexp() != 1 {
		return Capture{}, fmt.Errorf("capture variable %s: regex must have exactly one capture group, found %d", cv.Name, re.NumSubexp())
	}
	return Capture{Name: cv.Name, Pattern: re}, nil
}

func compileChecks(step testcase.Step) (Checks, error) {
	var checks Checks

	if v := step.Verification; v != nil {
		checks.Result = strings.TrimSpace(v.Result)
		checks.Output = strings.TrimSpace(v.Output)
		for _, cond := range v.General {
			if strings.TrimSpace(cond.Condition) == "" {
				return checks, fmt.Errorf("general condition %q has no condition", cond.Name)
			}
			checks.General = append(checks.General, cond)
		}
	}

	if checks.Result == "" && step.Expected.Success != nil && !*step.Expected.Success {
		checks.ExpectFailure = true
	}

	if checks.Output == "" && step.Expected.Output != "" {
		pattern, err := matcher.Compile(step.Expected.Output)
		if err != nil {
			return checks, err
		}
		checks.OutputPattern = &pattern
	}

	return checks, nil
}

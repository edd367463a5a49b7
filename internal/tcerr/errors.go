// Package tcerr defines the error taxonomy shared by the tcm packages.
//
// Every domain failure is an *Error carrying a Code. Callers branch on the
// code with Is or the dedicated helpers, which see through wrapping.
package tcerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes tcm errors.
type Code string

const (
	// CodeMalformedStep indicates a step definition violates the test case model.
	CodeMalformedStep Code = "MALFORMED_STEP"

	// CodeCommandSpawn indicates a command could not be started at all.
	CodeCommandSpawn Code = "COMMAND_SPAWN_ERROR"

	// CodeStepVerification indicates a step ran but one of its checks failed.
	CodeStepVerification Code = "STEP_VERIFICATION_FAILURE"

	// CodeTestCaseNotFound indicates no definition exists for a test case id.
	CodeTestCaseNotFound Code = "TEST_CASE_NOT_FOUND"

	// CodeLogParse indicates an execution log could not be parsed.
	CodeLogParse Code = "LOG_PARSE_ERROR"

	// CodeTagExpressionSyntax indicates a tag expression could not be parsed.
	CodeTagExpressionSyntax Code = "TAG_EXPRESSION_SYNTAX_ERROR"

	// CodeRetryExhausted indicates every allowed attempt of a test case failed.
	CodeRetryExhausted Code = "RETRY_EXHAUSTED"

	// CodeConfiguration indicates invalid flags, config files or selections.
	CodeConfiguration Code = "CONFIGURATION_ERROR"

	// CodeInterrupted indicates a test case stopped because the run was cancelled.
	CodeInterrupted Code = "INTERRUPTED"
)

// Error is a tcm domain error. Location fields are zero when not applicable.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// TestCaseID identifies the affected test case.
	TestCaseID string

	// Sequence and Step locate the affected step.
	Sequence int
	Step     int

	// Position is the 0-based byte offset for syntax errors, -1 otherwise.
	Position int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var loc []string
	if e.TestCaseID != "" {
		loc = append(loc, "test case "+e.TestCaseID)
	}
	if e.Sequence > 0 {
		loc = append(loc, fmt.Sprintf("sequence %d", e.Sequence))
	}
	if e.Step > 0 {
		loc = append(loc, fmt.Sprintf("step %d", e.Step))
	}
	if e.Position >= 0 && e.Code == CodeTagExpressionSyntax {
		loc = append(loc, fmt.Sprintf("position %d", e.Position))
	}
	if len(loc) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(loc, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err, or anything it wraps, is an *Error with the given code.
func Is(err error, code Code) bool {
	for err != nil {
		var te *Error
		if !errors.As(err, &te) {
			return false
		}
		if te.Code == code {
			return true
		}
		err = te.Err
	}
	return false
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// MalformedStep creates an error for an invalid step definition.
func MalformedStep(testCaseID string, sequence, step int, format string, args ...interface{}) *Error {
	return &Error{
		Code:       CodeMalformedStep,
		Message:    fmt.Sprintf(format, args...),
		TestCaseID: testCaseID,
		Sequence:   sequence,
		Step:       step,
		Position:   -1,
	}
}

// CommandSpawn creates an error for a command that could not be started.
func CommandSpawn(testCaseID string, sequence, step int, cause error) *Error {
	return &Error{
		Code:       CodeCommandSpawn,
		Message:    "failed to start command",
		TestCaseID: testCaseID,
		Sequence:   sequence,
		Step:       step,
		Position:   -1,
		Err:        cause,
	}
}

// StepVerification creates an error for a step whose named check failed.
func StepVerification(testCaseID string, sequence, step int, check string) *Error {
	return &Error{
		Code:       CodeStepVerification,
		Message:    fmt.Sprintf("%s check failed", check),
		TestCaseID: testCaseID,
		Sequence:   sequence,
		Step:       step,
		Position:   -1,
	}
}

// TestCaseNotFound creates an error for an unknown test case id.
func TestCaseNotFound(testCaseID string) *Error {
	return &Error{
		Code:       CodeTestCaseNotFound,
		Message:    "definition not found",
		TestCaseID: testCaseID,
		Position:   -1,
	}
}

// LogParse creates an error for an unparseable log. line is 1-based, 0 when unknown.
func LogParse(source string, line int, cause error) *Error {
	msg := fmt.Sprintf("cannot parse %s", source)
	if line > 0 {
		msg = fmt.Sprintf("cannot parse %s line %d", source, line)
	}
	return &Error{
		Code:     CodeLogParse,
		Message:  msg,
		Position: -1,
		Err:      cause,
	}
}

// TagExpressionSyntax creates an error for an invalid tag expression.
func TagExpressionSyntax(position int, format string, args ...interface{}) *Error {
	return &Error{
		Code:     CodeTagExpressionSyntax,
		Message:  fmt.Sprintf(format, args...),
		Position: position,
	}
}

// RetryExhausted wraps the last failure of a test case that used all attempts.
func RetryExhausted(testCaseID string, attempts int, last error) *Error {
	return &Error{
		Code:       CodeRetryExhausted,
		Message:    fmt.Sprintf("failed after %d attempts", attempts),
		TestCaseID: testCaseID,
		Position:   -1,
		Err:        last,
	}
}

// Configuration creates a fatal configuration error.
func Configuration(format string, args ...interface{}) *Error {
	return &Error{
		Code:     CodeConfiguration,
		Message:  fmt.Sprintf(format, args...),
		Position: -1,
	}
}

// Interrupted creates an error for a test case stopped by cancellation.
func Interrupted(testCaseID string, cause error) *Error {
	return &Error{
		Code:       CodeInterrupted,
		Message:    "run interrupted",
		TestCaseID: testCaseID,
		Position:   -1,
		Err:        cause,
	}
}

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool {
	return Is(err, CodeConfiguration)
}

// IsInterrupted returns true if err is an interruption.
func IsInterrupted(err error) bool {
	return Is(err, CodeInterrupted)
}

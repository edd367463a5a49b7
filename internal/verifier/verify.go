// Package verifier checks execution logs against test case definitions and
// renders the verdicts as text, JSON, YAML or JUnit XML.
//
// Every declared automated step is looked up in the log by its sequence and
// step number. A missing record leaves the step not executed; a present one
// passes only when every declared expectation holds.
package verifier

import (
	"fmt"

	"tcm/internal/matcher"
	"tcm/internal/tcerr"
	"tcm/internal/testcase"
	"tcm/pkg/logging"
)

const subsystem = "Verifier"

// Outcome is the verdict for a step or test case.
type Outcome string

const (
	OutcomePass        Outcome = "pass"
	OutcomeFail        Outcome = "fail"
	OutcomeNotExecuted Outcome = "not_executed"
)

// Locator finds the definition of a test case.
type Locator func(id string) (*testcase.TestCase, error)

// Counts aggregates step verdicts.
type Counts struct {
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	NotExecuted int     `json:"not_executed"`
	Total       int     `json:"total"`
	PassRate    float64 `json:"pass_rate"`
}

func (c *Counts) add(o Outcome) {
	switch o {
	case OutcomePass:
		c.Passed++
	case OutcomeFail:
		c.Failed++
	default:
		c.NotExecuted++
	}
	c.Total++
	c.PassRate = float64(c.Passed) / float64(c.Total) * 100
}

func (c *Counts) merge(other Counts) {
	c.Passed += other.Passed
	c.Failed += other.Failed
	c.NotExecuted += other.NotExecuted
	c.Total += other.Total
	if c.Total > 0 {
		c.PassRate = float64(c.Passed) / float64(c.Total) * 100
	}
}

// StepResult is the verdict of one declared step.
type StepResult struct {
	Sequence    int      `json:"sequence"`
	Step        int      `json:"step"`
	Description string   `json:"description,omitempty"`
	Outcome     Outcome  `json:"outcome"`
	Reasons     []string `json:"reasons,omitempty"`
	Record      *Record  `json:"record,omitempty"`
}

// SequenceResult groups the step verdicts of one sequence.
type SequenceResult struct {
	ID     int          `json:"id"`
	Name   string       `json:"name,omitempty"`
	Steps  []StepResult `json:"steps"`
	Counts Counts       `json:"counts"`
}

// TestCaseResult is the verdict of one test case found in the logs.
type TestCaseResult struct {
	TestCaseID  string           `json:"test_case_id"`
	Description string           `json:"description,omitempty"`
	Outcome     Outcome          `json:"outcome"`
	Reason      string           `json:"reason,omitempty"`
	Sequences   []SequenceResult `json:"sequences,omitempty"`
	Counts      Counts           `json:"counts"`

	// Unmatched counts records that name no declared automated step
	Unmatched int `json:"unmatched_records,omitempty"`
}

// LogError is a log source that could not be read or parsed.
type LogError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// BatchReport is the result of verifying a set of logs.
type BatchReport struct {
	TestCases []TestCaseResult `json:"test_cases"`
	LogErrors []LogError       `json:"log_errors,omitempty"`

	// Steps aggregates every step verdict in the batch
	Steps Counts `json:"steps"`

	// Cases aggregates test case verdicts
	Cases Counts `json:"test_case_counts"`
}

// AllPassed reports whether every declared step was executed and passed and
// every log and definition was usable.
func (r *BatchReport) AllPassed() bool {
	return r.Steps.Failed == 0 && r.Steps.NotExecuted == 0 &&
		r.Cases.Failed == 0 && len(r.LogErrors) == 0
}

// Verify checks every record in logs against the definitions found by locate.
// Test cases are reported in the order their ids first appear in the logs.
func Verify(logs []Log, locate Locator) *BatchReport {
	report := &BatchReport{}

	var order []string
	grouped := make(map[string][]Record)
	for _, log := range logs {
		if log.Err != nil {
			logging.Warn(subsystem, "Skipping log %s: %v", log.Source, log.Err)
			report.LogErrors = append(report.LogErrors, LogError{Source: log.Source, Error: log.Err.Error()})
			continue
		}
		if len(log.Records) == 0 && log.TestCaseID != "" {
			// an empty execution log still means the test case ran
			if _, ok := grouped[log.TestCaseID]; !ok {
				order = append(order, log.TestCaseID)
				grouped[log.TestCaseID] = nil
			}
		}
		for _, rec := range log.Records {
			if _, ok := grouped[rec.TestCaseID]; !ok {
				order = append(order, rec.TestCaseID)
			}
			grouped[rec.TestCaseID] = append(grouped[rec.TestCaseID], rec)
		}
	}

	for _, id := range order {
		result := verifyTestCase(id, grouped[id], locate)
		report.TestCases = append(report.TestCases, result)
		report.Steps.merge(result.Counts)
		report.Cases.add(result.Outcome)
	}

	logging.Debug(subsystem, "Verified %d test cases: %d steps passed, %d failed, %d not executed",
		len(report.TestCases), report.Steps.Passed, report.Steps.Failed, report.Steps.NotExecuted)
	return report
}

// VerifyTestCase checks the records of a single test case against tc.
func VerifyTestCase(tc *testcase.TestCase, records []Record) TestCaseResult {
	result := TestCaseResult{
		TestCaseID:  tc.ID,
		Description: tc.Description,
	}

	type key struct{ sequence, step int }
	byStep := make(map[key]Record, len(records))
	for _, rec := range records {
		// last record wins
		byStep[key{rec.Sequence, rec.Step}] = rec
	}

	matched := 0
	for _, seq := range tc.Sequences {
		sr := SequenceResult{ID: seq.ID, Name: seq.Name}
		for _, step := range seq.Steps {
			if step.Manual {
				continue
			}
			stepResult := StepResult{
				Sequence:    seq.ID,
				Step:        step.Step,
				Description: step.Description,
				Outcome:     OutcomeNotExecuted,
			}
			if rec, ok := byStep[key{seq.ID, step.Step}]; ok {
				matched++
				stepResult.Record = &rec
				stepResult.Reasons = compare(step.Expected, rec)
				stepResult.Outcome = OutcomePass
				if len(stepResult.Reasons) > 0 {
					stepResult.Outcome = OutcomeFail
				}
			}
			sr.Steps = append(sr.Steps, stepResult)
			sr.Counts.add(stepResult.Outcome)
		}
		result.Sequences = append(result.Sequences, sr)
		result.Counts.merge(sr.Counts)
	}
	result.Unmatched = len(byStep) - matched
	if result.Unmatched > 0 {
		logging.Debug(subsystem, "%s: %d records match no declared automated step", tc.ID, result.Unmatched)
	}

	switch {
	case result.Counts.Failed > 0:
		result.Outcome = OutcomeFail
		result.Reason = fmt.Sprintf("%d of %d steps failed", result.Counts.Failed, result.Counts.Total)
	case result.Counts.Passed > 0 && result.Counts.NotExecuted > 0:
		// a partially executed log never verifies as a pass
		result.Outcome = OutcomeFail
		result.Reason = fmt.Sprintf("%d of %d steps not executed", result.Counts.NotExecuted, result.Counts.Total)
	case result.Counts.Passed > 0:
		result.Outcome = OutcomePass
	default:
		result.Outcome = OutcomeNotExecuted
	}
	return result
}

func verifyTestCase(id string, records []Record, locate Locator) TestCaseResult {
	tc, err := locate(id)
	if err != nil {
		reason := err.Error()
		if tcerr.Is(err, tcerr.CodeTestCaseNotFound) {
			reason = "definition not found"
		}
		logging.Warn(subsystem, "Cannot verify %s: %s", id, reason)
		return TestCaseResult{
			TestCaseID: id,
			Outcome:    OutcomeFail,
			Reason:     reason,
		}
	}
	return VerifyTestCase(tc, records)
}

// compare returns one reason per declared expectation that rec violates.
func compare(expected testcase.Expected, rec Record) []string {
	var reasons []string

	if expected.Success != nil && *expected.Success != rec.Success {
		reasons = append(reasons, fmt.Sprintf("success: expected %t, got %t", *expected.Success, rec.Success))
	}
	if expected.Result != "" {
		if reason := comparePattern("result", expected.Result, rec.Result); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	if expected.Output != "" {
		if reason := comparePattern("output", expected.Output, rec.Output); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	return reasons
}

func comparePattern(field, expected, observed string) string {
	ok, err := matcher.Match(expected, observed)
	if err != nil {
		return fmt.Sprintf("%s: %v", field, err)
	}
	if !ok {
		return fmt.Sprintf("%s: expected %q, got %q", field, expected, observed)
	}
	return ""
}

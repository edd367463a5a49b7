package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tcm/internal/executor"
)

// SummaryFileName is the run summary written next to the execution logs.
const SummaryFileName = "run_summary.json"

// Outcome is the final verdict for one test case in a batch.
type Outcome string

const (
	OutcomePassed      Outcome = "passed"
	OutcomeFailed      Outcome = "failed"
	OutcomeNotExecuted Outcome = "not_executed"
)

// CaseReport is the batch entry of one selected test case.
type CaseReport struct {
	TestCaseID      string               `json:"test_case_id"`
	Outcome         Outcome              `json:"outcome"`
	State           State                `json:"state"`
	Attempts        int                  `json:"attempts"`
	DurationSeconds float64              `json:"duration_seconds"`
	LogPath         string               `json:"log_path,omitempty"`
	Error           string               `json:"error,omitempty"`
	Failure         *executor.StepResult `json:"failure,omitempty"`
}

// BatchReport is the result of one orchestrated run, listed in selection order.
type BatchReport struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"-"`
	DurationSeconds float64       `json:"duration_seconds"`
	Workers         int           `json:"workers"`
	MaxAttempts     int           `json:"max_attempts"`
	Interrupted     bool          `json:"interrupted"`
	Cases           []CaseReport  `json:"test_cases"`
	Passed          int           `json:"passed"`
	Failed          int           `json:"failed"`
	NotExecuted     int           `json:"not_executed"`
}

// Total returns the number of selected test cases.
func (r *BatchReport) Total() int {
	return len(r.Cases)
}

// AllPassed reports whether every selected test case passed.
func (r *BatchReport) AllPassed() bool {
	return r.Failed == 0 && r.NotExecuted == 0 && !r.Interrupted
}

// SuccessRate returns the passed percentage, 0 for an empty batch.
func (r *BatchReport) SuccessRate() float64 {
	if len(r.Cases) == 0 {
		return 0
	}
	return float64(r.Passed) / float64(len(r.Cases)) * 100
}

// WriteSummary writes the report as indented JSON into dir and returns the path.
func (r *BatchReport) WriteSummary(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}

	path := filepath.Join(dir, SummaryFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}
	return path, nil
}

func (r *BatchReport) add(c CaseReport) {
	switch c.Outcome {
	case OutcomePassed:
		r.Passed++
	case OutcomeFailed:
		r.Failed++
	default:
		r.NotExecuted++
	}
	r.Cases = append(r.Cases, c)
}

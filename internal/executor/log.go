package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tcm/internal/tcerr"
)

// LogFileSuffix is appended to the test case id to name its execution log.
const LogFileSuffix = "_execution_log.json"

// LogEntry records one executed step.
type LogEntry struct {
	// TestSequence is the sequence id as written in the test case
	TestSequence int `json:"test_sequence"`

	// Step is the original step number
	Step int `json:"step"`

	// Command is the command exactly as declared
	Command string `json:"command"`

	// ExitCode is the command's exit code; 127 when it could not be started
	ExitCode int `json:"exit_code"`

	// Output is the combined stdout and stderr without trailing newlines
	Output string `json:"output"`

	// Timestamp is the RFC3339 completion time with zone offset
	Timestamp string `json:"timestamp"`
}

// LogWriter persists the execution log of one test case attempt.
type LogWriter interface {
	WriteLog(path string, entries []LogEntry) error
}

// FileLogWriter writes execution logs as indented JSON arrays.
type FileLogWriter struct{}

// WriteLog replaces the file at path with entries.
func (FileLogWriter) WriteLog(path string, entries []LogEntry) error {
	return WriteLog(path, entries)
}

// LogFileName returns the execution log file name for a test case id.
func LogFileName(testCaseID string) string {
	return testCaseID + LogFileSuffix
}

// LogPath returns the execution log path for a test case id under dir.
func LogPath(dir, testCaseID string) string {
	return filepath.Join(dir, LogFileName(testCaseID))
}

// WriteLog writes entries to path as a JSON array. An empty log is written as [].
func WriteLog(path string, entries []LogEntry) error {
	if entries == nil {
		entries = []LogEntry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution log: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write execution log %s: %w", path, err)
	}
	return nil
}

// ReadLog reads an execution log written by WriteLog.
func ReadLog(path string) ([]LogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution log %s: %w", path, err)
	}

	var entries []LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, tcerr.LogParse(path, 0, err)
	}
	return entries, nil
}

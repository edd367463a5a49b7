package verifier

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tcm/internal/executor"
	"tcm/internal/tcerr"
)

// Record is one observed step outcome taken from a log.
type Record struct {
	TestCaseID string     `json:"test_case_id"`
	Sequence   int        `json:"sequence"`
	Step       int        `json:"step"`
	Success    bool       `json:"success"`
	Result     string     `json:"result"`
	Output     string     `json:"output"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Log is the parsed content of one log source. Err is set when the source
// could not be read or parsed; Records is then empty.
type Log struct {
	Source     string   `json:"source"`
	TestCaseID string   `json:"test_case_id,omitempty"`
	Records    []Record `json:"records"`
	Err        error    `json:"-"`
}

// textLine matches
//
//	[2024-01-02T15:04:05Z] TestCase: TC001, Sequence: 1, Step: 2, Success: true, Result: 0, Output: SW=0x9000
//
// with the bracketed timestamp optional.
var textLine = regexp.MustCompile(`^(?:\[([^\]]*)\]\s*)?TestCase:\s*(.*?),\s*Sequence:\s*(-?\d+),\s*Step:\s*(-?\d+),\s*Success:\s*(\S+?),\s*Result:\s*(.*?),\s*Output:\s?(.*)$`)

// LoadLog reads and parses the log at path. testCaseID overrides the id
// derived from an execution log file name and filters text logs to that id.
func LoadLog(path, testCaseID string) Log {
	log := Log{Source: path, TestCaseID: testCaseID}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Err = fmt.Errorf("failed to read log %s: %w", path, err)
		return log
	}

	records, err := ParseLog(path, data, testCaseID)
	if err != nil {
		log.Err = err
		return log
	}
	log.Records = records
	if log.TestCaseID == "" {
		if len(records) > 0 {
			log.TestCaseID = records[0].TestCaseID
		} else {
			log.TestCaseID = TestCaseIDFromPath(path)
		}
	}
	return log
}

// ParseLog parses data read from source. A JSON array is treated as an
// execution log, anything else as text lines.
func ParseLog(source string, data []byte, testCaseID string) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed) {
		return parseExecutionLog(source, trimmed, testCaseID)
	}
	return parseTextLog(source, data, testCaseID)
}

// TestCaseIDFromPath derives the test case id from an execution log file
// name, or returns "" when the name does not follow the convention.
func TestCaseIDFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, executor.LogFileSuffix) {
		return ""
	}
	return strings.TrimSuffix(base, executor.LogFileSuffix)
}

func parseExecutionLog(source string, data []byte, testCaseID string) ([]Record, error) {
	var entries []executor.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, tcerr.LogParse(source, 0, err)
	}

	id := testCaseID
	if id == "" {
		id = TestCaseIDFromPath(source)
	}
	if id == "" {
		return nil, tcerr.LogParse(source, 0,
			fmt.Errorf("cannot derive a test case id from the file name, expected <id>%s", executor.LogFileSuffix))
	}

	records := make([]Record, 0, len(entries))
	for i, entry := range entries {
		rec := Record{
			TestCaseID: id,
			Sequence:   entry.TestSequence,
			Step:       entry.Step,
			Success:    entry.ExitCode == 0,
			Result:     strconv.Itoa(entry.ExitCode),
			Output:     entry.Output,
		}
		if entry.Timestamp != "" {
			ts, err := time.Parse(time.RFC3339, entry.Timestamp)
			if err != nil {
				return nil, tcerr.LogParse(source, 0, fmt.Errorf("entry %d: %w", i+1, err))
			}
			rec.Timestamp = &ts
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseTextLog(source string, data []byte, testCaseID string) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		rec, err := parseTextLine(trimmed)
		if err != nil {
			return nil, tcerr.LogParse(source, lineNo, err)
		}
		if testCaseID != "" && rec.TestCaseID != testCaseID {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, tcerr.LogParse(source, lineNo, err)
	}
	return records, nil
}

func parseTextLine(line string) (Record, error) {
	m := textLine.FindStringSubmatch(line)
	if m == nil {
		return Record{}, errors.New("expected 'TestCase: <id>, Sequence: <n>, Step: <n>, Success: <bool>, Result: <text>, Output: <text>'")
	}

	rec := Record{
		TestCaseID: strings.TrimSpace(m[2]),
		Result:     m[6],
		Output:     m[7],
	}
	if rec.TestCaseID == "" {
		return Record{}, errors.New("empty test case id")
	}

	var err error
	if rec.Sequence, err = strconv.Atoi(m[3]); err != nil {
		return Record{}, fmt.Errorf("invalid sequence %q", m[3])
	}
	if rec.Step, err = strconv.Atoi(m[4]); err != nil {
		return Record{}, fmt.Errorf("invalid step %q", m[4])
	}
	if rec.Success, err = strconv.ParseBool(m[5]); err != nil {
		return Record{}, fmt.Errorf("invalid success flag %q", m[5])
	}

	if stamp := strings.TrimSpace(m[1]); stamp != "" {
		ts, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			return Record{}, fmt.Errorf("invalid timestamp %q: %w", stamp, err)
		}
		rec.Timestamp = &ts
	}
	return rec, nil
}

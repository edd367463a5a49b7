package verifier

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// JUnitSuiteName is the name attribute of the rendered test suite.
const JUnitSuiteName = "tcm verification"

type junitSuite struct {
	XMLName  xml.Name    `xml:"testsuite"`
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     string      `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name    string        `xml:"name,attr"`
	Time    string        `xml:"time,attr"`
	Failure *junitMessage `xml:"failure,omitempty"`
	Skipped *junitMessage `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
}

// RenderJUnit renders one <testcase> per verified step. A test case that could
// not be verified as a whole contributes a single failing <testcase>. The
// document is parsed back and its counters checked before it is returned.
func RenderJUnit(report *BatchReport) ([]byte, error) {
	suite := junitSuite{
		Name: JUnitSuiteName,
		Time: seconds(recordSpan(report)),
	}

	for _, tc := range report.TestCases {
		if len(tc.Sequences) == 0 && tc.Outcome == OutcomeFail {
			suite.Cases = append(suite.Cases, junitCase{
				Name:    tc.TestCaseID,
				Time:    seconds(0),
				Failure: &junitMessage{Message: tc.Reason},
			})
			continue
		}
		for _, seq := range tc.Sequences {
			for _, step := range seq.Steps {
				jc := junitCase{
					Name: fmt.Sprintf("%s seq %d step %d", tc.TestCaseID, seq.ID, step.Step),
					Time: seconds(0),
				}
				switch step.Outcome {
				case OutcomeFail:
					jc.Failure = &junitMessage{Message: strings.Join(step.Reasons, "; ")}
				case OutcomeNotExecuted:
					jc.Skipped = &junitMessage{Message: "step not executed"}
				}
				suite.Cases = append(suite.Cases, jc)
			}
		}
	}
	for _, le := range report.LogErrors {
		suite.Cases = append(suite.Cases, junitCase{
			Name:    le.Source,
			Time:    seconds(0),
			Failure: &junitMessage{Message: le.Error},
		})
	}

	suite.Tests = len(suite.Cases)
	for _, jc := range suite.Cases {
		if jc.Failure != nil {
			suite.Failures++
		}
		if jc.Skipped != nil {
			suite.Skipped++
		}
	}

	body, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal junit report: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteString("\n")

	if err := validateJUnit(buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validateJUnit checks that the suite counters agree with its children.
func validateJUnit(data []byte) error {
	var suite junitSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return fmt.Errorf("junit report is not well formed: %w", err)
	}

	failures, skipped := 0, 0
	for _, jc := range suite.Cases {
		if jc.Failure != nil {
			failures++
		}
		if jc.Skipped != nil {
			skipped++
		}
	}

	switch {
	case suite.Tests != len(suite.Cases):
		return fmt.Errorf("junit report declares %d tests but contains %d", suite.Tests, len(suite.Cases))
	case suite.Failures != failures:
		return fmt.Errorf("junit report declares %d failures but contains %d", suite.Failures, failures)
	case suite.Skipped != skipped:
		return fmt.Errorf("junit report declares %d skipped but contains %d", suite.Skipped, skipped)
	}
	return nil
}

// recordSpan is the time between the earliest and latest timestamped record.
func recordSpan(report *BatchReport) time.Duration {
	var first, last time.Time
	for _, tc := range report.TestCases {
		for _, seq := range tc.Sequences {
			for _, step := range seq.Steps {
				if step.Record == nil || step.Record.Timestamp == nil {
					continue
				}
				ts := *step.Record.Timestamp
				if first.IsZero() || ts.Before(first) {
					first = ts
				}
				if ts.After(last) {
					last = ts
				}
			}
		}
	}
	if first.IsZero() {
		return 0
	}
	return last.Sub(first)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

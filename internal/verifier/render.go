package verifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"sigs.k8s.io/yaml"

	"tcm/internal/tcerr"
	tcstrings "tcm/pkg/strings"
)

// Format selects a report renderer.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatJUnit Format = "junit"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatJUnit}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", tcerr.Configuration("unknown report format %q (want text, json, yaml or junit)", name)
}

// Render renders report in the given format.
func Render(report *BatchReport, format Format) ([]byte, error) {
	switch format {
	case FormatText, "":
		return []byte(RenderText(report)), nil
	case FormatJSON:
		return RenderJSON(report)
	case FormatYAML:
		return RenderYAML(report)
	case FormatJUnit:
		return RenderJUnit(report)
	default:
		return nil, tcerr.Configuration("unknown report format %q", format)
	}
}

// RenderJSON renders the full report as indented JSON.
func RenderJSON(report *BatchReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderYAML renders the full report as YAML using the JSON field names.
func RenderYAML(report *BatchReport) ([]byte, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// RenderText renders a step table followed by failure details and totals.
func RenderText(report *BatchReport) string {
	var b strings.Builder

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"TEST CASE", "SEQUENCE", "STEP", "OUTCOME", "DESCRIPTION"})
	for _, tc := range report.TestCases {
		if len(tc.Sequences) == 0 {
			t.AppendRow(table.Row{tc.TestCaseID, "-", "-", tc.Outcome, tc.Reason})
			continue
		}
		for _, seq := range tc.Sequences {
			for _, step := range seq.Steps {
				t.AppendRow(table.Row{
					tc.TestCaseID,
					seq.ID,
					step.Step,
					step.Outcome,
					tcstrings.TruncateLine(step.Description, tcstrings.DefaultLineMaxLen),
				})
			}
		}
	}
	b.WriteString(t.Render())
	b.WriteString("\n")

	var failures []string
	for _, tc := range report.TestCases {
		if len(tc.Sequences) == 0 && tc.Outcome == OutcomeFail {
			failures = append(failures, fmt.Sprintf("  %s: %s", tc.TestCaseID, tc.Reason))
		}
		for _, seq := range tc.Sequences {
			for _, step := range seq.Steps {
				for _, reason := range step.Reasons {
					failures = append(failures, fmt.Sprintf("  %s seq %d step %d: %s", tc.TestCaseID, seq.ID, step.Step, reason))
				}
			}
		}
	}
	for _, le := range report.LogErrors {
		failures = append(failures, fmt.Sprintf("  %s: %s", le.Source, le.Error))
	}
	if len(failures) > 0 {
		b.WriteString("\nFailures:\n")
		b.WriteString(strings.Join(failures, "\n"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nSteps: %d passed, %d failed, %d not executed of %d (%.1f%% passed)\n",
		report.Steps.Passed, report.Steps.Failed, report.Steps.NotExecuted, report.Steps.Total, report.Steps.PassRate)
	fmt.Fprintf(&b, "Test cases: %d passed, %d failed, %d not executed of %d\n",
		report.Cases.Passed, report.Cases.Failed, report.Cases.NotExecuted, report.Cases.Total)
	return b.String()
}

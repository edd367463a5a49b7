package compiler

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"tcm/internal/matcher"
)

// ScriptOptions configures RenderScript.
type ScriptOptions struct {
	// Shell runs each step command inside the script
	Shell string

	// OutputDir is the default log directory; TCM_OUTPUT_DIR overrides it at run time
	OutputDir string
}

// RenderScript renders plan as a standalone bash script that runs every
// command step in order, prints the same status lines as the executor and
// writes the same execution log. An empty Shell means bash and an empty
// OutputDir means the working directory.
//
// Capture and output regexes are emitted for bash [[ =~ ]], which uses POSIX ERE rather
// than RE2: Perl classes such as \d or lazy quantifiers do not carry over.
func RenderScript(plan *Plan, opts ScriptOptions) (string, error) {
	tmpl, err := template.New("script").Funcs(scriptFuncs()).Parse(scriptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse script template: %w", err)
	}

	var buf bytes.Buffer
	data := struct {
		Plan    *Plan
		Shell   string
		OutDir  string
		LogName string
	}{
		Plan:    plan,
		Shell:   opts.Shell,
		OutDir:  opts.OutputDir,
		LogName: plan.TestCaseID + "_execution_log.json",
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render script for %s: %w", plan.TestCaseID, err)
	}
	return buf.String(), nil
}

// IsManual is used by the script template.
func (e Entry) IsManual() bool {
	return e.Kind == KindManual
}

func scriptFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["shq"] = shellQuote
	funcs["resultCheck"] = resultCheckScript
	funcs["outputCheck"] = outputCheckScript
	return funcs
}

// shellQuote wraps s in single quotes for bash.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func resultCheckScript(u *Unit) string {
	switch {
	case u.Checks.Result != "":
		return u.Checks.Result
	case u.Checks.ExpectFailure:
		return `[[ "$EXIT_CODE" -ne 0 ]]`
	default:
		return `[[ "$EXIT_CODE" -eq 0 ]]`
	}
}

func outputCheckScript(u *Unit) string {
	if u.Checks.Output != "" {
		return u.Checks.Output
	}
	p := u.Checks.OutputPattern
	if p == nil {
		return "true"
	}

	subject := `"$TCM_TRIMMED"`
	if p.KeepsSpaces() {
		subject = `"$COMMAND_OUTPUT"`
	}

	switch p.Kind() {
	case matcher.KindRegex:
		return fmt.Sprintf("{ TCM_RE=%s; [[ %s =~ $TCM_RE ]]; }", shellQuote(p.Regexp().String()), subject)
	case matcher.KindWildcard:
		parts := strings.Split(p.String(), "*")
		for i, part := range parts {
			if part != "" {
				parts[i] = shellQuote(part)
			}
		}
		return fmt.Sprintf("[[ %s == %s ]]", subject, strings.Join(parts, "*"))
	default:
		return fmt.Sprintf("[[ %s == %s ]]", subject, shellQuote(p.String()))
	}
}

const scriptTemplate = `{{ $shell := default "bash" .Shell }}{{ $outDir := default "." .OutDir }}#!/usr/bin/env bash
# Test case: {{ .Plan.TestCaseID }}
{{- with .Plan.Description }}
# {{ . | replace "\n" " " | trim }}
{{- end }}
# Generated by tcm generate; edit the test case instead of this file.

TCM_OUTPUT_DIR="${TCM_OUTPUT_DIR:-}"
if [ -z "$TCM_OUTPUT_DIR" ]; then
  TCM_OUTPUT_DIR={{ shq $outDir }}
fi
mkdir -p "$TCM_OUTPUT_DIR"
TCM_LOG_FILE="$TCM_OUTPUT_DIR"/{{ shq .LogName }}
TCM_FIRST_ENTRY=1
printf '[' > "$TCM_LOG_FILE"

tcm_json_escape() {
  printf '%s' "$1" | sed -e 's/\\/\\\\/g' -e 's/"/\\"/g' -e 's/\t/\\t/g' -e 's/\r/\\r/g' | awk 'NR > 1 { printf "\\n" } { printf "%s", $0 }'
}

tcm_log_step() {
  if [ "$TCM_FIRST_ENTRY" -eq 0 ]; then
    printf ',' >> "$TCM_LOG_FILE"
  fi
  TCM_FIRST_ENTRY=0
  printf '\n  {\n    "test_sequence": %s,\n    "step": %s,\n    "command": "%s",\n    "exit_code": %s,\n    "output": "%s",\n    "timestamp": "%s"\n  }' \
    "$1" "$2" "$(tcm_json_escape "$3")" "$4" "$(tcm_json_escape "$5")" "$(date +%Y-%m-%dT%H:%M:%S%:z)" >> "$TCM_LOG_FILE"
}

tcm_finish_log() {
  if [ "$TCM_FIRST_ENTRY" -eq 0 ]; then
    printf '\n]\n' >> "$TCM_LOG_FILE"
  else
    printf ']\n' >> "$TCM_LOG_FILE"
  fi
}
trap tcm_finish_log EXIT

tcm_fail() {
  echo "[FAIL] $1"
  echo "  command: $2"
  echo "  exit code: $3"
  echo "  failed check: $4"
  exit 1
}
{{ range .Plan.Entries }}
{{- if .IsManual }}
echo {{ shq (printf "[SKIP] seq %d step %d: %s (manual step)" .Sequence .Step .Description) }}
{{- else }}
# Sequence {{ .Sequence }}, step {{ .Step }}{{ with .Description }}: {{ . | replace "\n" " " | trunc 72 }}{{ end }}
echo {{ shq (printf "[RUN] seq %d step %d: %s" .Sequence .Step .Description) }}
COMMAND_OUTPUT=$({{ $shell }} -c {{ shq .Unit.Command }} 2>&1)
EXIT_CODE=$?
RESULT=$EXIT_CODE
export EXIT_CODE RESULT COMMAND_OUTPUT
tcm_log_step {{ .Sequence }} {{ .Step }} {{ shq .Unit.Command }} "$EXIT_CODE" "$COMMAND_OUTPUT"
{{- range .Unit.Captures }}
{{- if .Pattern }}
TCM_RE={{ shq .Pattern.String }}
if [[ "$COMMAND_OUTPUT" =~ $TCM_RE ]]; then {{ .Name }}="${BASH_REMATCH[1]}"; else {{ .Name }}=""; fi
{{- else }}
{{ .Name }}=$({{ $shell }} -c {{ shq .Command }})
{{- end }}
export {{ .Name }}
{{- end }}
TCM_TRIMMED="${COMMAND_OUTPUT#"${COMMAND_OUTPUT%%[![:space:]]*}"}"
TCM_TRIMMED="${TCM_TRIMMED%"${TCM_TRIMMED##*[![:space:]]}"}"
TCM_FAILED=""
(exit "$EXIT_CODE"); if {{ resultCheck .Unit }}; then :; else TCM_FAILED="result"; fi
if [ -z "$TCM_FAILED" ]; then
  (exit "$EXIT_CODE"); if {{ outputCheck .Unit }}; then :; else TCM_FAILED="output"; fi
fi
{{- range .Unit.Checks.General }}
if [ -z "$TCM_FAILED" ]; then
  (exit "$EXIT_CODE"); if {{ .Condition | trim }}; then :; else TCM_FAILED={{ shq (printf "general:%s" .Name) }}; fi
fi
{{- end }}
if [ -n "$TCM_FAILED" ]; then
  tcm_fail {{ shq (printf "seq %d step %d: %s" .Sequence .Step .Description) }} {{ shq .Unit.Command }} "$EXIT_CODE" "$TCM_FAILED"
fi
echo {{ shq (printf "[PASS] seq %d step %d: %s" .Sequence .Step .Description) }}
{{- end }}
{{ end }}
exit 0
`

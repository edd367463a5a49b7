package executor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm/internal/config"
	"tcm/internal/tcerr"
	"tcm/internal/testcase"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func newTestExecutor(t *testing.T, out *bytes.Buffer, modify ...func(*config.Config)) (*Executor, string) {
	t.Helper()
	requireBash(t)

	dir := t.TempDir()
	cfg := config.Default().WithOverrides(func(c *config.Config) {
		c.OutputDir = dir
		for _, m := range modify {
			m(c)
		}
	})

	var reporter StepReporter = NopReporter{}
	if out != nil {
		reporter = NewConsoleReporter(out, false, false)
	}
	return New(cfg, reporter, nil), dir
}

func singleSequence(id string, steps ...testcase.Step) testcase.TestCase {
	return testcase.TestCase{
		ID:        id,
		Sequences: []testcase.TestSequence{{ID: 1, Steps: steps}},
	}
}

func statusLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "[") {
			lines = append(lines, strings.SplitN(line, " ", 2)[0])
		}
	}
	return lines
}

func boolPtr(b bool) *bool { return &b }

func TestExecute_ManualStepsAreSkippedAndNotLogged(t *testing.T) {
	var out bytes.Buffer
	ex, dir := newTestExecutor(t, &out)

	tc := singleSequence("TC005",
		testcase.Step{Step: 1, Description: "one", Command: "echo one"},
		testcase.Step{Step: 2, Description: "plug reader", Manual: true},
		testcase.Step{Step: 3, Description: "three", Command: "echo three"},
		testcase.Step{Step: 4, Description: "check LED", Manual: true},
		testcase.Step{Step: 5, Description: "five", Command: "echo five"},
	)

	result, err := ex.Execute(context.Background(), tc)
	require.NoError(t, err)
	assert.True(t, result.Passed())
	assert.Equal(t, 2, result.ManualSkipped)

	assert.Equal(t, []string{
		"[RUN]", "[PASS]",
		"[SKIP]",
		"[RUN]", "[PASS]",
		"[SKIP]",
		"[RUN]", "[PASS]",
	}, statusLines(out.String()))
	assert.Contains(t, out.String(), "[SKIP] seq 1 step 2: plug reader (manual step)")
	assert.Contains(t, out.String(), "TC005: PASSED (3 executed, 2 manual skipped")

	entries, err := ReadLog(LogPath(dir, "TC005"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{entries[0].Step, entries[1].Step, entries[2].Step})
	assert.Equal(t, "three", entries[1].Output)
	assert.Equal(t, "echo five", entries[2].Command)

	for _, entry := range entries {
		assert.Equal(t, 1, entry.TestSequence)
		_, err := time.Parse(time.RFC3339, entry.Timestamp)
		assert.NoError(t, err)
	}
}

func TestExecute_ManualOnlyWritesEmptyLog(t *testing.T) {
	ex, dir := newTestExecutor(t, nil)

	result, err := ex.Execute(context.Background(), singleSequence("TC_MANUAL",
		testcase.Step{Step: 1, Manual: true},
		testcase.Step{Step: 2, Manual: true},
	))
	require.NoError(t, err)
	assert.True(t, result.Passed())

	entries, err := ReadLog(LogPath(dir, "TC_MANUAL"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecute_PassRequiresEveryCheck(t *testing.T) {
	base := func() testcase.Step {
		return testcase.Step{
			Step:    1,
			Command: "echo hello",
			Verification: &testcase.Verification{
				Result: "[[ $? -eq 0 ]]",
				Output: `[[ "$COMMAND_OUTPUT" == "hello" ]]`,
				General: []testcase.GeneralCondition{
					{Name: "not_empty", Condition: `[[ -n "$COMMAND_OUTPUT" ]]`},
					{Name: "exit_var", Condition: `[[ "$EXIT_CODE" == "0" ]]`},
				},
			},
		}
	}

	tests := []struct {
		name   string
		modify func(*testcase.Step)
		failed []string
	}{
		{"all hold", func(*testcase.Step) {}, nil},
		{"result fails", func(s *testcase.Step) { s.Verification.Result = "[[ $? -eq 1 ]]" }, []string{"result"}},
		{"output fails", func(s *testcase.Step) { s.Verification.Output = `[[ "$COMMAND_OUTPUT" == "bye" ]]` }, []string{"output"}},
		{"one general fails", func(s *testcase.Step) { s.Verification.General[1].Condition = "false" }, []string{"general:exit_var"}},
		{"several fail", func(s *testcase.Step) {
			s.Verification.Result = "false"
			s.Verification.General[0].Condition = "false"
		}, []string{"result", "general:not_empty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExecutor(t, nil)

			step := base()
			tt.modify(&step)

			result, err := ex.Execute(context.Background(), singleSequence("TC_CHECKS", step))
			require.Len(t, result.Steps, 1)

			if tt.failed == nil {
				require.NoError(t, err)
				assert.True(t, result.Steps[0].Passed)
				assert.Equal(t, StatusPassed, result.Status)
				return
			}

			require.Error(t, err)
			assert.True(t, tcerr.Is(err, tcerr.CodeStepVerification))
			assert.Equal(t, StatusFailed, result.Status)
			assert.Equal(t, tt.failed, result.Steps[0].FailedChecks)
		})
	}
}

func TestExecute_StopsAtFirstFailingStep(t *testing.T) {
	var out bytes.Buffer
	ex, dir := newTestExecutor(t, &out)

	result, err := ex.Execute(context.Background(), singleSequence("TC_STOP",
		testcase.Step{Step: 1, Command: "echo ok"},
		testcase.Step{Step: 2, Description: "breaks", Command: "echo broken; exit 2"},
		testcase.Step{Step: 3, Command: "echo never"},
	))
	require.Error(t, err)

	require.NotNil(t, result.Failure)
	assert.Equal(t, 2, result.Failure.Step)
	assert.Equal(t, 2, result.Failure.ExitCode)
	assert.Equal(t, []string{"result"}, result.Failure.FailedChecks)

	assert.Equal(t, []string{"[RUN]", "[PASS]", "[RUN]", "[FAIL]"}, statusLines(out.String()))
	assert.Contains(t, out.String(), "  exit code: 2")
	assert.Contains(t, out.String(), "  failed check: result")
	assert.Contains(t, out.String(), "    broken")

	entries, err := ReadLog(LogPath(dir, "TC_STOP"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[1].ExitCode)
	assert.Equal(t, "broken", entries[1].Output)
}

func TestExecute_CapturesFlowIntoLaterSteps(t *testing.T) {
	ex, dir := newTestExecutor(t, nil)

	result, err := ex.Execute(context.Background(), singleSequence("TC_CAPTURE",
		testcase.Step{
			Step:    1,
			Command: `echo "SW=0x9000"`,
			CaptureVars: []testcase.CaptureVar{
				{Name: "SW", Capture: `SW=(0x[0-9A-F]{4})`},
				{Name: "LENGTH", Command: `printf '%s' "$COMMAND_OUTPUT" | wc -c | tr -d ' '`},
				{Name: "MISSING", Capture: `NOPE=(\d+)`},
			},
			Verification: &testcase.Verification{
				General: []testcase.GeneralCondition{{Name: "sw", Condition: `[[ "$SW" == "0x9000" ]]`}},
			},
		},
		testcase.Step{
			Step:    2,
			Command: `echo "$SW/$LENGTH/[$MISSING]"`,
			Expected: testcase.Expected{
				Output: "0x9000/9/[]",
			},
		},
	))
	require.NoError(t, err, "steps: %+v", result.Steps)

	assert.Equal(t, map[string]string{"SW": "0x9000", "LENGTH": "9", "MISSING": ""}, result.Steps[0].Captured)

	entries, err := ReadLog(LogPath(dir, "TC_CAPTURE"))
	require.NoError(t, err)
	assert.Equal(t, "0x9000/9/[]", entries[1].Output)
}

func TestExecute_ExitStatusSemantics(t *testing.T) {
	tests := []struct {
		name    string
		step    testcase.Step
		wantErr bool
	}{
		{
			name: "expected failure passes on non-zero exit",
			step: testcase.Step{Step: 1, Command: "exit 3", Expected: testcase.Expected{Success: boolPtr(false)}},
		},
		{
			name:    "expected failure fails on zero exit",
			step:    testcase.Step{Step: 1, Command: "true", Expected: testcase.Expected{Success: boolPtr(false)}},
			wantErr: true,
		},
		{
			name: "dollar question mark is primed",
			step: testcase.Step{Step: 1, Command: "exit 3", Verification: &testcase.Verification{Result: "[[ $? -eq 3 ]]"}},
		},
		{
			name: "stdout and stderr are separated",
			step: testcase.Step{Step: 1, Command: "echo out; echo err >&2", Verification: &testcase.Verification{
				General: []testcase.GeneralCondition{
					{Name: "stdout", Condition: `[[ "$STDOUT" == "out" ]]`},
					{Name: "stderr", Condition: `[[ "$STDERR" == "err" ]]`},
				},
			}},
		},
		{
			name: "default output pattern",
			step: testcase.Step{Step: 1, Command: `echo "SW=0x9000"`, Expected: testcase.Expected{Output: "/SW=0x[0-9A-F]{4}/"}},
		},
		{
			name:    "default output pattern mismatch",
			step:    testcase.Step{Step: 1, Command: `echo "SW=0x6A82"`, Expected: testcase.Expected{Output: "SW=0x9000"}},
			wantErr: true,
		},
		{
			name:    "unknown command inside the shell",
			step:    testcase.Step{Step: 1, Command: "definitely-not-a-command-tcm"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExecutor(t, nil)
			result, err := ex.Execute(context.Background(), singleSequence("TC_EXIT", tt.step))
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, result.Passed())
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Passed())
		})
	}
}

func TestExecute_SpawnErrorIs127(t *testing.T) {
	ex, dir := newTestExecutor(t, nil, func(c *config.Config) {
		c.Shell = "/nonexistent/tcm-shell"
	})

	result, err := ex.Execute(context.Background(), singleSequence("TC_SPAWN",
		testcase.Step{Step: 1, Command: "echo hi"},
		testcase.Step{Step: 2, Command: "echo never"},
	))
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.CodeCommandSpawn))
	assert.Equal(t, StatusFailed, result.Status)

	entries, err := ReadLog(LogPath(dir, "TC_SPAWN"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ExitCodeSpawnFailure, entries[0].ExitCode)
}

func TestExecute_CommandTimeoutKillsProcessGroup(t *testing.T) {
	ex, _ := newTestExecutor(t, nil, func(c *config.Config) {
		c.CommandTimeout = 200 * time.Millisecond
	})

	start := time.Now()
	result, err := ex.Execute(context.Background(), singleSequence("TC_TIMEOUT",
		testcase.Step{Step: 1, Command: "sleep 5 & sleep 5; wait"},
	))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, ExitCodeTimeout, result.Steps[0].ExitCode)
}

func TestExecute_CancelledContextStopsBeforeNextStep(t *testing.T) {
	ex, dir := newTestExecutor(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ex.Execute(ctx, singleSequence("TC_CANCEL", testcase.Step{Step: 1, Command: "echo hi"}))
	require.Error(t, err)
	assert.True(t, tcerr.IsInterrupted(err))
	assert.Equal(t, StatusInterrupted, result.Status)
	assert.Empty(t, result.Steps)

	entries, err := ReadLog(LogPath(dir, "TC_CANCEL"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecute_MalformedStepWritesNoLog(t *testing.T) {
	ex, _ := newTestExecutor(t, nil)

	result, err := ex.Execute(context.Background(), singleSequence("TC_BAD", testcase.Step{Step: 1}))
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.CodeMalformedStep))
	assert.Equal(t, StatusFailed, result.Status)
	assert.Empty(t, result.LogPath)
}

type recordingWriter struct {
	calls [][]LogEntry
}

func (w *recordingWriter) WriteLog(_ string, entries []LogEntry) error {
	w.calls = append(w.calls, entries)
	return nil
}

func TestExecute_OneLogWritePerAttempt(t *testing.T) {
	requireBash(t)
	writer := &recordingWriter{}
	ex := New(config.Default().WithOverrides(func(c *config.Config) { c.OutputDir = t.TempDir() }), nil, writer)

	tc := singleSequence("TC_WRITES",
		testcase.Step{Step: 1, Command: "true"},
		testcase.Step{Step: 2, Command: "true"},
	)
	_, err := ex.Execute(context.Background(), tc)
	require.NoError(t, err)
	_, err = ex.Execute(context.Background(), tc)
	require.NoError(t, err)

	require.Len(t, writer.calls, 2)
	assert.Len(t, writer.calls[1], 2)
}

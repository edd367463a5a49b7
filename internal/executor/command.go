package executor

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tcm/pkg/logging"
)

const (
	// ExitCodeSpawnFailure is reported when a command cannot be started.
	ExitCodeSpawnFailure = 127

	// ExitCodeTimeout is reported when a command exceeds its timeout.
	ExitCodeTimeout = 124

	// waitDelay bounds how long output pipes may stay open after the shell exits.
	waitDelay = 2 * time.Second
)

// commandResult is the raw outcome of one shell invocation.
type commandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Combined string
	Duration time.Duration
	TimedOut bool
	SpawnErr error
}

// lockedBuffer serializes writes from the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runShell runs script with shell -c in its own process group. The command is
// deliberately not bound to a context: an interrupted run lets the current
// step finish. timeout <= 0 disables the timeout.
func runShell(shell, script string, env []string, timeout time.Duration) commandResult {
	start := time.Now()

	cmd := exec.Command(shell, "-c", script)
	cmd.Env = env
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}
	cmd.Stdout = io.MultiWriter(&stdout, combined)
	cmd.Stderr = io.MultiWriter(&stderr, combined)
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return commandResult{
			ExitCode: ExitCodeSpawnFailure,
			Combined: err.Error(),
			Stderr:   err.Error(),
			Duration: time.Since(start),
			SpawnErr: err,
		}
	}

	var timedOut atomic.Bool
	var timer *time.Timer
	if timeout > 0 {
		pid := cmd.Process.Pid
		timer = time.AfterFunc(timeout, func() {
			timedOut.Store(true)
			if err := killProcessGroup(pid); err != nil {
				logging.Warn("Executor", "Failed to kill timed out command: %v", err)
			}
		})
	}

	err := cmd.Wait()
	if timer != nil {
		timer.Stop()
	}

	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
		Duration: time.Since(start),
		TimedOut: timedOut.Load(),
	}

	switch {
	case result.TimedOut:
		result.ExitCode = ExitCodeTimeout
	case cmd.ProcessState != nil:
		result.ExitCode = exitCodeOf(cmd.ProcessState)
	default:
		result.ExitCode = ExitCodeSpawnFailure
	}

	if err != nil && !errors.As(err, new(*exec.ExitError)) && !errors.Is(err, exec.ErrWaitDelay) {
		logging.Debug("Executor", "Command wait returned: %v", err)
	}

	return result
}

// trimOutput drops trailing newlines the way shell command substitution does.
func trimOutput(s string) string {
	return strings.TrimRight(s, "\r\n")
}

//go:build windows

package executor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// configureProcAttr starts the command in a new process group.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessGroup terminates the process. Windows has no signal-addressable
// process groups, so children of the shell may survive.
func killProcessGroup(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Kill(); err != nil {
		return fmt.Errorf("failed to terminate process %d: %w", pid, err)
	}
	return nil
}

func exitCodeOf(state *os.ProcessState) int {
	return state.ExitCode()
}

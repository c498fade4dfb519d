//go:build unix

package engine

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the command in its own process group so
// cancellation kills every process the shell started.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

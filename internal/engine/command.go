package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/roach88/cascade/internal/extract"
)

// runCommand runs a command action to completion.
//
// The command runs as `<shell> -c <cmd>` in its own process group with
// stdout and stderr merged into one pipe. store_static is rendered once the
// process has started, before its first line is read. The exit status is
// ignored; output already extracted is what matters.
func (m *Manager) runCommand(ctx context.Context, t *Task) error {
	rules, err := extract.Compile(t.spec)
	if err != nil {
		return err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return &ProcessSpawnError{Action: t.Action, Cmd: t.spec.Cmd, Err: err}
	}

	cmdCtx, stopCmd := context.WithCancel(ctx)
	defer stopCmd()

	cmd := exec.CommandContext(cmdCtx, m.shell, "-c", t.spec.Cmd)
	cmd.Env = append(os.Environ(), m.env...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return &ProcessSpawnError{Action: t.Action, Cmd: t.spec.Cmd, Err: err}
	}
	// The child holds its own copy of the write end; EOF arrives when the
	// process group has closed it.
	pw.Close()
	defer pr.Close()

	// Unblocks the reader when the task is cancelled while a descendant
	// still holds the pipe open.
	stopClose := context.AfterFunc(cmdCtx, func() { pr.Close() })
	defer stopClose()

	m.logger.Debug("command started", "task", t.ID, "action", t.Action, "pid", cmd.Process.Pid)

	if err := m.applyStatic(t, rules); err != nil {
		stopCmd()
		_ = cmd.Wait()
		return err
	}

	readErr := m.consumeLines(ctx, t, rules, pr)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		return fmt.Errorf("action %s: read output: %w", t.Action, readErr)
	}
	if waitErr != nil {
		m.logger.Debug("command exited", "task", t.ID, "action", t.Action, "status", waitErr)
	}

	m.persist(ctx, t)
	return nil
}

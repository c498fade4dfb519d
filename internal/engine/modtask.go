package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/cascade/internal/extract"
)

// runModule runs a registered module. Lines it writes are extracted exactly
// like command output, and the target is snapshotted when it returns.
func (m *Manager) runModule(ctx context.Context, t *Task) error {
	rules, err := extract.Compile(t.spec)
	if err != nil {
		return err
	}

	run, err := m.modules.Resolve(t.spec.Module, m.target)
	if err != nil {
		return &ModuleError{Action: t.Action, Module: t.spec.Module, Err: err}
	}

	if err := m.applyStatic(t, rules); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	runErr := make(chan error, 1)
	go func() {
		err := run.Run(ctx, pw)
		pw.CloseWithError(err)
		runErr <- err
	}()

	readErr := m.consumeLines(ctx, t, rules, pr)
	pr.Close()
	err = <-runErr

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return &ModuleError{Action: t.Action, Module: t.spec.Module, Err: err}
	}
	if readErr != nil {
		return fmt.Errorf("action %s: read module output: %w", t.Action, readErr)
	}

	m.persist(ctx, t)
	return nil
}

package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	File    string
	Line    int
	Column  int
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		file := e.File
		if file == "" {
			file = "<input>"
		}
		return fmt.Sprintf("%s:%d:%d: %s: %s", file, e.Line, e.Column, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// errorAt builds a CompileError positioned at n.
func errorAt(n *node, field, format string, args ...any) *CompileError {
	err := &CompileError{Field: field, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		err.File, err.Line, err.Column = n.pos.file, n.pos.line, n.pos.col
	}
	return err
}

// posFromCUE converts a CUE token position.
func posFromCUE(p token.Pos) position {
	if !p.IsValid() {
		return position{}
	}
	return position{file: p.Filename(), line: p.Line(), col: p.Column()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "cue", Message: err.Error()}
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		p := posFromCUE(positions[0])
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			File:    p.file,
			Line:    p.line,
			Column:  p.col,
		}
	}

	return &CompileError{Field: "cue", Message: firstErr.Error()}
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/module"
)

// LoadError represents a workflow loading error with a CLI error code.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadWorkflow loads and compiles a workflow file or CUE package directory,
// classifying failures by error code.
func LoadWorkflow(path string) (*compiler.Loaded, error) {
	loaded, err := compiler.LoadWorkflow(path)
	if err == nil {
		return loaded, nil
	}

	var compileErr *compiler.CompileError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("workflow not found: %s", path), Err: err}
	case errors.As(err, &compileErr):
		return nil, &LoadError{Code: ErrCodeCompile, Message: compileErr.Error(), Err: err}
	case isSupportedPath(path):
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err}
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: err.Error(), Err: err}
	}
}

// isSupportedPath reports whether path names a workflow format the
// compiler reads. Directories are always candidates (CUE packages).
func isSupportedPath(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".cue", "":
		return true
	}
	return false
}

// knownModules returns the validation hook for the built-in registry.
func knownModules() compiler.ValidateOptions {
	return compiler.ValidateOptions{KnownModule: module.Builtins().Has}
}

// loadErrorCode extracts the CLI error code from a load error.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

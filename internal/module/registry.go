// Package module provides in-process actions that run inside the engine
// instead of as external commands.
//
// A module writes output lines to the writer it is given; those lines flow
// through the same extraction rules as command output. Modules may also
// read the target and store derived values directly.
package module

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/cascade/internal/target"
)

// Runnable is one resolved module invocation.
type Runnable interface {
	// Run writes output lines to w until done. Returning a non-nil error
	// fails the action; lines already written have been processed.
	Run(ctx context.Context, w io.Writer) error
}

// RunnableFunc adapts a function to Runnable.
type RunnableFunc func(ctx context.Context, w io.Writer) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Factory constructs a module bound to the run's target.
type Factory func(t *target.Target) (Runnable, error)

// Registry maintains known module factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a module factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("module: name is required")
	}
	if factory == nil {
		return fmt.Errorf("module: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("module: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve constructs a module by name for the given target.
func (r *Registry) Resolve(name string, t *target.Target) (Runnable, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownModuleError{Name: name, Known: r.Names()}
	}
	return factory(t)
}

// Names returns a sorted list of registered module names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownModuleError is returned by Resolve for an unregistered name.
type UnknownModuleError struct {
	Name  string
	Known []string
}

// Error implements the error interface.
func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("module: unknown module %q (registered: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Builtins returns a registry holding every built-in module.
func Builtins() *Registry {
	r := NewRegistry()
	r.MustRegister(ParseURLName, newParseURL)
	r.MustRegister(DumpName, newDump)
	return r
}

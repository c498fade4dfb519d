package extract

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a malformed rule or an unresolved template
// placeholder. It is fatal to the action that raised it only.
type ConfigurationError struct {
	Action  string // Action name, if known
	Field   string // Offending field or placeholder
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Action != "" {
		return fmt.Sprintf("configuration error in %s: %s: %s", e.Action, e.Field, msg)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, msg)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	Action  string
	Rule    string // "store", "append_scalar", "append_composite", "events"
	Key     string
	Pattern string
	Err     error
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern in %s %s rule %q: %q: %v", e.Action, e.Rule, e.Key, e.Pattern, e.Err)
}

// Unwrap returns the underlying regexp error.
func (e *PatternError) Unwrap() error {
	return e.Err
}

// IsConfigurationError returns true if err is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsPatternError returns true if err is a PatternError.
// Uses errors.As to handle wrapped errors.
func IsPatternError(err error) bool {
	var pe *PatternError
	return errors.As(err, &pe)
}

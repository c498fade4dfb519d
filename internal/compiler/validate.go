package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/extract"
	"github.com/roach88/cascade/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrNoEvents          = "E200" // workflow defines no events
	ErrActionNameEmpty   = "E201" // action name is required
	ErrDuplicateAction   = "E202" // duplicate action name within an event
	ErrActionSource      = "E203" // exactly one of cmd, file, module
	ErrEmptyRuleKey      = "E204" // rule key must be non-empty
	ErrInvalidPattern    = "E205" // pattern does not compile
	ErrInvalidTemplate   = "E206" // store_static template is malformed
	ErrCompositeNoFields = "E207" // composite rule has no fields
	ErrTriggerNoEvents   = "E208" // trigger rule fires nothing
	ErrUnknownModule     = "E209" // module is not registered
	ErrMalformedRule     = "E210" // other malformed rule
)

// Warning codes (W300-W399). Warnings never block a run.
const (
	WarnCycle          = "W300" // events can re-fire themselves
	WarnUndefinedEvent = "W301" // trigger names an event with no definition
	WarnUnstoredKey    = "W302" // template reads a key no rule stores
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// TaskScoped reports whether the error only affects the action it names.
// The engine fails such an action when it starts and keeps its siblings
// running. Structural errors (E200 to E203) leave no runnable workflow.
func (e ValidationError) TaskScoped() bool {
	switch e.Code {
	case ErrEmptyRuleKey, ErrInvalidPattern, ErrInvalidTemplate,
		ErrCompositeNoFields, ErrTriggerNoEvents, ErrUnknownModule, ErrMalformedRule:
		return true
	}
	return false
}

// ValidateOptions configures Validate.
type ValidateOptions struct {
	// KnownModule reports whether a module name is registered. Nil skips
	// the module check.
	KnownModule func(name string) bool
}

// Validate checks a compiled workflow. Returns all errors found (does not
// fail-fast), ordered by event declaration order.
func Validate(wf *ir.Workflow, opts ValidateOptions) []ValidationError {
	var errs []ValidationError

	if wf == nil || len(wf.Order) == 0 {
		return []ValidationError{{
			Field:   "workflow",
			Message: "workflow defines no events",
			Code:    ErrNoEvents,
		}}
	}

	for _, event := range wf.Order {
		names := make(map[string]bool)
		for i, spec := range wf.Events[event] {
			field := fmt.Sprintf("%s[%d]", event, i)

			// E201: name required
			if strings.TrimSpace(spec.Name) == "" {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: "action name is required",
					Code:    ErrActionNameEmpty,
				})
			}

			// E202: duplicate names make logs and snapshots ambiguous
			if names[spec.Name] {
				errs = append(errs, ValidationError{
					Field:   field + ".name",
					Message: fmt.Sprintf("duplicate action name %q in event %q", spec.Name, event),
					Code:    ErrDuplicateAction,
				})
			}
			names[spec.Name] = true

			errs = append(errs, validateSource(field, spec, opts)...)
			errs = append(errs, validateRules(field, spec)...)
		}
	}

	return errs
}

// validateSource checks that the kind matches exactly one source field.
func validateSource(field string, spec ir.ActionSpec, opts ValidateOptions) []ValidationError {
	var set []string
	if spec.Cmd != "" {
		set = append(set, keyCmd)
	}
	if spec.File != "" {
		set = append(set, keyFile)
	}
	if spec.Module != "" {
		set = append(set, keyModule)
	}

	want := map[ir.ActionKind]string{
		ir.KindCommand:  keyCmd,
		ir.KindListener: keyFile,
		ir.KindModule:   keyModule,
	}[spec.Kind]

	if len(set) != 1 || set[0] != want {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("%s action needs exactly one non-empty %s (set: %v)", kindLabel(spec.Kind), orUnknown(want), set),
			Code:    ErrActionSource,
		}}
	}

	if spec.Kind == ir.KindModule && opts.KnownModule != nil && !opts.KnownModule(spec.Module) {
		return []ValidationError{{
			Field:   field + ".module",
			Message: fmt.Sprintf("unknown module %q", spec.Module),
			Code:    ErrUnknownModule,
		}}
	}
	return nil
}

// validateRules compiles the rule set the same way a task would, so every
// malformed rule and bad pattern is reported before the run.
func validateRules(field string, spec ir.ActionSpec) []ValidationError {
	var errs []ValidationError

	for i, c := range spec.AppendComposite {
		if len(c.Fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.append_composite[%d]", field, i),
				Message: fmt.Sprintf("composite rule %q has no fields", c.ArrayKey),
				Code:    ErrCompositeNoFields,
			})
		}
	}
	for i, tr := range spec.Triggers {
		if len(tr.Events) == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.events[%d]", field, i),
				Message: fmt.Sprintf("trigger %q fires no events", tr.Pattern),
				Code:    ErrTriggerNoEvents,
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if _, err := extract.Compile(spec); err != nil {
		errs = append(errs, ruleError(field, err))
	}
	return errs
}

func ruleError(field string, err error) ValidationError {
	var pe *extract.PatternError
	if errors.As(err, &pe) {
		return ValidationError{
			Field:   fmt.Sprintf("%s.%s.%s", field, pe.Rule, pe.Key),
			Message: fmt.Sprintf("invalid pattern %q: %v", pe.Pattern, pe.Err),
			Code:    ErrInvalidPattern,
		}
	}

	var ce *extract.ConfigurationError
	if errors.As(err, &ce) {
		switch {
		case strings.HasSuffix(ce.Message, "is required"):
			return ValidationError{
				Field:   field + "." + ce.Field,
				Message: ce.Message,
				Code:    ErrEmptyRuleKey,
			}
		case !isRuleName(ce.Field):
			// Template errors name the offending fragment instead of a rule.
			return ValidationError{
				Field:   field + "." + extract.RuleStoreStatic,
				Message: fmt.Sprintf("%s: %s", ce.Field, ce.Message),
				Code:    ErrInvalidTemplate,
			}
		}
		return ValidationError{
			Field:   field + "." + ce.Field,
			Message: ce.Message,
			Code:    ErrMalformedRule,
		}
	}

	return ValidationError{Field: field, Message: err.Error(), Code: ErrMalformedRule}
}

func isRuleName(field string) bool {
	for _, r := range []string{
		extract.RuleStore,
		extract.RuleAppendScalar,
		extract.RuleAppendComposite,
		extract.RuleTrigger,
		extract.RuleStoreStatic,
	} {
		if field == r || strings.HasPrefix(field, r+".") {
			return true
		}
	}
	return false
}

func kindLabel(k ir.ActionKind) string {
	if k == "" {
		return "untyped"
	}
	return string(k)
}

func orUnknown(s string) string {
	if s == "" {
		return "cmd, file or module"
	}
	return s
}

// Warning is a non-blocking finding about a workflow.
type Warning struct {
	Code    string   `json:"code"`
	Path    []string `json:"path,omitempty"` // Cycle path: ["a", "b", "a"]
	Event   string   `json:"event,omitempty"`
	Action  string   `json:"action,omitempty"`
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "info"
}

// UndefinedEvents reports trigger rules that fire events the workflow does
// not define. Such triggers spawn nothing at runtime.
func UndefinedEvents(wf *ir.Workflow) []Warning {
	var warnings []Warning
	for _, event := range wf.Order {
		for _, spec := range wf.Events[event] {
			for _, tr := range spec.Triggers {
				for _, target := range tr.Events {
					if _, ok := wf.Events[target]; ok {
						continue
					}
					warnings = append(warnings, Warning{
						Code:    WarnUndefinedEvent,
						Event:   event,
						Action:  spec.Name,
						Message: fmt.Sprintf("action %s fires undefined event %q", spec.Name, target),
						Level:   "warning",
					})
				}
			}
		}
	}
	return warnings
}

// UnstoredKeys reports store_static templates that read keys no rule of the
// workflow writes. Such keys must be seeded before the run or stored by a
// module, so the finding is informational. Keys in seeded are treated as
// stored.
func UnstoredKeys(wf *ir.Workflow, seeded ...string) []Warning {
	written := make(map[string]bool, len(seeded))
	for _, k := range seeded {
		written[k] = true
	}
	for _, event := range wf.Order {
		for _, spec := range wf.Events[event] {
			for _, kt := range spec.StoreStatic {
				written[kt.Key] = true
			}
			for _, kp := range spec.Store {
				written[kp.Key] = true
			}
			for _, kp := range spec.AppendScalar {
				written[kp.Key] = true
			}
			for _, cr := range spec.AppendComposite {
				written[cr.ArrayKey] = true
			}
		}
	}

	var warnings []Warning
	for _, event := range wf.Order {
		for _, spec := range wf.Events[event] {
			for _, kt := range spec.StoreStatic {
				// Malformed templates are reported by Validate
				keys, err := extract.Fields(kt.Template)
				if err != nil {
					continue
				}
				for _, key := range keys {
					if written[key] {
						continue
					}
					warnings = append(warnings, Warning{
						Code:    WarnUnstoredKey,
						Event:   event,
						Action:  spec.Name,
						Message: fmt.Sprintf("action %s renders {%s} but no rule stores %q", spec.Name, key, key),
						Level:   "info",
					})
				}
			}
		}
	}
	return warnings
}

package extract

import (
	"context"
	"regexp"
	"sync"

	"github.com/roach88/cascade/internal/ir"
)

// Rule names used in errors and validation output.
const (
	RuleStore           = "store"
	RuleAppendScalar    = "append_scalar"
	RuleAppendComposite = "append_composite"
	RuleTrigger         = "events"
	RuleStoreStatic     = "store_static"
)

// Sink receives the effects of applying rules to a line.
//
// Store and Append are each called once per effect; an implementation
// acquires the target lock for exactly that call. NewEvent must not block
// on the spawned tasks.
type Sink interface {
	Store(key, value string)
	Append(key string, value ir.IRValue)
	NewEvent(ctx context.Context, name string)
}

// Result counts the effects of one Apply call.
type Result struct {
	Stored   int
	Appended int
	Fired    int
}

// Empty reports whether the line produced no effect.
func (r Result) Empty() bool {
	return r.Stored == 0 && r.Appended == 0 && r.Fired == 0
}

type keyMatcher struct {
	key string
	re  *regexp.Regexp
}

type compositeMatcher struct {
	arrayKey string
	fields   []keyMatcher
}

type triggerMatcher struct {
	re     *regexp.Regexp
	events []string
}

// Rules is the compiled rule set of one action.
// Rules is immutable and safe for concurrent use.
type Rules struct {
	action    string
	static    []ir.KeyTemplate
	store     []keyMatcher
	scalar    []keyMatcher
	composite []compositeMatcher
	triggers  []triggerMatcher
}

// patternCache shares compiled patterns across tasks spawned from the same
// action spec.
var patternCache sync.Map // map[string]*regexp.Regexp

// compilePattern compiles or fetches a cached pattern.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := patternCache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// Compile validates and compiles every rule of spec, keeping declaration
// order. Returns a PatternError for the first invalid pattern or a
// ConfigurationError for a malformed rule.
func Compile(spec ir.ActionSpec) (*Rules, error) {
	r := &Rules{action: spec.Name}

	for _, st := range spec.StoreStatic {
		if st.Key == "" {
			return nil, &ConfigurationError{Action: spec.Name, Field: RuleStoreStatic, Message: "key is required"}
		}
		if _, err := parseTemplate(st.Template); err != nil {
			return nil, withAction(err, spec.Name)
		}
		r.static = append(r.static, st)
	}

	var err error
	if r.store, err = compileKeyPatterns(spec.Name, RuleStore, spec.Store); err != nil {
		return nil, err
	}
	if r.scalar, err = compileKeyPatterns(spec.Name, RuleAppendScalar, spec.AppendScalar); err != nil {
		return nil, err
	}

	for _, c := range spec.AppendComposite {
		if c.ArrayKey == "" {
			return nil, &ConfigurationError{Action: spec.Name, Field: RuleAppendComposite, Message: "array key is required"}
		}
		if len(c.Fields) == 0 {
			return nil, &ConfigurationError{Action: spec.Name, Field: RuleAppendComposite + "." + c.ArrayKey, Message: "at least one field is required"}
		}
		fields, err := compileKeyPatterns(spec.Name, RuleAppendComposite, c.Fields)
		if err != nil {
			return nil, err
		}
		r.composite = append(r.composite, compositeMatcher{arrayKey: c.ArrayKey, fields: fields})
	}

	for _, tr := range spec.Triggers {
		if tr.Pattern == "" {
			return nil, &ConfigurationError{Action: spec.Name, Field: RuleTrigger, Message: "pattern is required"}
		}
		re, err := compilePattern(tr.Pattern)
		if err != nil {
			return nil, &PatternError{Action: spec.Name, Rule: RuleTrigger, Key: tr.Pattern, Pattern: tr.Pattern, Err: err}
		}
		r.triggers = append(r.triggers, triggerMatcher{re: re, events: tr.Events})
	}

	return r, nil
}

func compileKeyPatterns(action, rule string, rules []ir.KeyPattern) ([]keyMatcher, error) {
	matchers := make([]keyMatcher, 0, len(rules))
	for _, kp := range rules {
		if kp.Key == "" {
			return nil, &ConfigurationError{Action: action, Field: rule, Message: "key is required"}
		}
		re, err := compilePattern(kp.Pattern)
		if err != nil {
			return nil, &PatternError{Action: action, Rule: rule, Key: kp.Key, Pattern: kp.Pattern, Err: err}
		}
		matchers = append(matchers, keyMatcher{key: kp.Key, re: re})
	}
	return matchers, nil
}

// withAction stamps the action name on a ConfigurationError.
func withAction(err error, action string) error {
	if ce, ok := err.(*ConfigurationError); ok && ce.Action == "" {
		ce.Action = action
	}
	return err
}

// RenderStatic renders every store_static template against l, in
// declaration order. Rendering happens once, before the first line.
func (r *Rules) RenderStatic(l Lookup) ([]ir.KeyTemplate, error) {
	out := make([]ir.KeyTemplate, 0, len(r.static))
	for _, st := range r.static {
		val, err := Render(st.Template, l)
		if err != nil {
			return nil, withAction(err, r.action)
		}
		out = append(out, ir.KeyTemplate{Key: st.Key, Template: val})
	}
	return out, nil
}

// Apply runs every rule against line in the fixed order store,
// append-scalar, append-composite, trigger.
func (r *Rules) Apply(ctx context.Context, line string, sink Sink) Result {
	var res Result

	for _, m := range r.store {
		if v, ok := firstMatch(m.re, line); ok {
			sink.Store(m.key, v)
			res.Stored++
		}
	}

	for _, m := range r.scalar {
		if v, ok := firstMatch(m.re, line); ok {
			sink.Append(m.key, ir.IRString(v))
			res.Appended++
		}
	}

	for _, c := range r.composite {
		record := ir.IRRecord{}
		for _, f := range c.fields {
			if v, ok := firstMatch(f.re, line); ok {
				record[f.key] = v
			}
		}
		if len(record) > 0 {
			sink.Append(c.arrayKey, record)
			res.Appended++
		}
	}

	for _, tr := range r.triggers {
		if !tr.re.MatchString(line) {
			continue
		}
		for _, ev := range tr.events {
			sink.NewEvent(ctx, ev)
			res.Fired++
		}
	}

	return res
}

// firstMatch returns the first match of re in line: the first capture group
// if re has groups, otherwise the whole match. An empty match still counts.
func firstMatch(re *regexp.Regexp, line string) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

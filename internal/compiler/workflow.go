package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/ir"
)

// Action keys. The aliases are the names older workflow files use.
const (
	keyName            = "name"
	keyCmd             = "cmd"
	keyFile            = "file"
	keyModule          = "module"
	keyStoreStatic     = "store_static"
	keyStore           = "store"
	keyAppendScalar    = "append_scalar"
	keyAppendArray     = "append_array"
	keyAppendComposite = "append_composite"
	keyAppendDictArray = "append_dict_array"
	keyEvents          = "events"
	keyPatternsField   = "patterns"
)

// CompileYAML parses a YAML workflow document.
func CompileYAML(src []byte, filename string) (*ir.Workflow, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error(), File: filename}
	}
	root, err := fromYAML(&doc, filename)
	if err != nil {
		return nil, err
	}
	return compileWorkflow(root)
}

// CompileCUE compiles a CUE value whose fields are the workflow events.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
func CompileCUE(v cue.Value) (*ir.Workflow, error) {
	root, err := fromCUE(v)
	if err != nil {
		return nil, err
	}
	return compileWorkflow(root)
}

// CompileCUEBytes compiles CUE source text.
func CompileCUEBytes(src []byte, filename string) (*ir.Workflow, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileCUE(v)
}

// compileWorkflow builds the workflow from its event map.
func compileWorkflow(root *node) (*ir.Workflow, error) {
	if root.kind != mapNode {
		return nil, errorAt(root, "workflow", "top level must map event names to action lists, got %s", root.kind)
	}

	wf := ir.NewWorkflow()
	for _, p := range root.pairs() {
		event := p.key
		if strings.TrimSpace(event) == "" {
			return nil, errorAt(p.val, "workflow", "event name must not be empty")
		}
		wf.Declare(event)

		if p.val.kind == scalarNode && p.val.null {
			continue
		}
		if p.val.kind != listNode {
			return nil, errorAt(p.val, event, "actions must be a list, got %s", p.val.kind)
		}
		for i, item := range p.val.items {
			spec, err := compileAction(fmt.Sprintf("%s[%d]", event, i), item)
			if err != nil {
				return nil, err
			}
			wf.Add(event, spec)
		}
	}
	return wf, nil
}

// compileAction builds one ActionSpec. Exactly one of cmd, file, or module
// selects the kind.
func compileAction(field string, n *node) (ir.ActionSpec, error) {
	var spec ir.ActionSpec
	if n.kind != mapNode {
		return spec, errorAt(n, field, "action must be a map, got %s", n.kind)
	}

	var sources []string
	for _, p := range n.pairs() {
		f := field + "." + p.key
		var err error
		switch p.key {
		case keyName:
			spec.Name, err = scalar(p.val, f)
		case keyCmd:
			spec.Cmd, err = scalar(p.val, f)
			sources = append(sources, p.key)
		case keyFile:
			spec.File, err = scalar(p.val, f)
			sources = append(sources, p.key)
		case keyModule:
			spec.Module, err = scalar(p.val, f)
			sources = append(sources, p.key)
		case keyStoreStatic:
			var kts []ir.KeyTemplate
			kts, err = keyTemplates(p.val, f)
			spec.StoreStatic = append(spec.StoreStatic, kts...)
		case keyStore:
			var kps []ir.KeyPattern
			kps, err = keyPatterns(p.val, f)
			spec.Store = append(spec.Store, kps...)
		case keyAppendScalar, keyAppendArray:
			var kps []ir.KeyPattern
			kps, err = keyPatterns(p.val, f)
			spec.AppendScalar = append(spec.AppendScalar, kps...)
		case keyAppendComposite, keyAppendDictArray:
			var crs []ir.CompositeRule
			crs, err = compositeRules(p.val, f)
			spec.AppendComposite = append(spec.AppendComposite, crs...)
		case keyEvents, keyPatternsField:
			var trs []ir.TriggerRule
			trs, err = triggerRules(p.val, f)
			spec.Triggers = append(spec.Triggers, trs...)
		default:
			err = errorAt(p.val, f, "unknown action key %q", p.key)
		}
		if err != nil {
			return ir.ActionSpec{}, err
		}
	}

	if strings.TrimSpace(spec.Name) == "" {
		return ir.ActionSpec{}, errorAt(n, field+".name", "name is required")
	}
	if len(sources) != 1 {
		return ir.ActionSpec{}, errorAt(n, field, "action %q needs exactly one of cmd, file, module (got %d)", spec.Name, len(sources))
	}
	switch sources[0] {
	case keyCmd:
		spec.Kind = ir.KindCommand
	case keyFile:
		spec.Kind = ir.KindListener
	case keyModule:
		spec.Kind = ir.KindModule
	}
	return spec, nil
}

func scalar(n *node, field string) (string, error) {
	if n.kind != scalarNode || n.null {
		return "", errorAt(n, field, "expected a string")
	}
	return n.value, nil
}

// rulePairs flattens a rule block. A map contributes its keys in order; a
// list contributes the keys of each map item in order.
func rulePairs(n *node, field string) ([]pair, error) {
	switch n.kind {
	case mapNode:
		return n.pairs(), nil
	case listNode:
		var out []pair
		for i, item := range n.items {
			if item.kind != mapNode {
				return nil, errorAt(item, fmt.Sprintf("%s[%d]", field, i), "rule must be a map, got %s", item.kind)
			}
			out = append(out, item.pairs()...)
		}
		return out, nil
	default:
		if n.null {
			return nil, nil
		}
		return nil, errorAt(n, field, "rule block must be a list or map, got %s", n.kind)
	}
}

func keyPatterns(n *node, field string) ([]ir.KeyPattern, error) {
	pairs, err := rulePairs(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]ir.KeyPattern, 0, len(pairs))
	for _, p := range pairs {
		pattern, err := scalar(p.val, field+"."+p.key)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.KeyPattern{Key: p.key, Pattern: pattern})
	}
	return out, nil
}

func keyTemplates(n *node, field string) ([]ir.KeyTemplate, error) {
	kps, err := keyPatterns(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]ir.KeyTemplate, len(kps))
	for i, kp := range kps {
		out[i] = ir.KeyTemplate{Key: kp.Key, Template: kp.Pattern}
	}
	return out, nil
}

func compositeRules(n *node, field string) ([]ir.CompositeRule, error) {
	pairs, err := rulePairs(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]ir.CompositeRule, 0, len(pairs))
	for _, p := range pairs {
		fields, err := keyPatterns(p.val, field+"."+p.key)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.CompositeRule{ArrayKey: p.key, Fields: fields})
	}
	return out, nil
}

// triggerRules reads pattern: [events] entries. A single event may be
// given as a plain string.
func triggerRules(n *node, field string) ([]ir.TriggerRule, error) {
	pairs, err := rulePairs(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]ir.TriggerRule, 0, len(pairs))
	for _, p := range pairs {
		f := field + "." + p.key
		var events []string
		switch p.val.kind {
		case scalarNode:
			ev, err := scalar(p.val, f)
			if err != nil {
				return nil, err
			}
			events = []string{ev}
		case listNode:
			for i, item := range p.val.items {
				ev, err := scalar(item, fmt.Sprintf("%s[%d]", f, i))
				if err != nil {
					return nil, err
				}
				events = append(events, ev)
			}
		default:
			return nil, errorAt(p.val, f, "events must be a string or list, got %s", p.val.kind)
		}
		out = append(out, ir.TriggerRule{Pattern: p.key, Events: events})
	}
	return out, nil
}

package compiler

import (
	"strconv"

	"cuelang.org/go/cue"
	"gopkg.in/yaml.v3"
)

type nodeKind int

const (
	scalarNode nodeKind = iota
	listNode
	mapNode
)

func (k nodeKind) String() string {
	switch k {
	case scalarNode:
		return "scalar"
	case listNode:
		return "list"
	default:
		return "map"
	}
}

type position struct {
	file string
	line int
	col  int
}

// node is a format-neutral, order-preserving view of a workflow document.
type node struct {
	kind  nodeKind
	value string // scalarNode
	null  bool   // scalarNode holding null
	items []*node
	keys  []string // mapNode keys in source order
	vals  []*node
	pos   position
}

// pair is one key of a map node.
type pair struct {
	key string
	val *node
}

func (n *node) pairs() []pair {
	out := make([]pair, len(n.keys))
	for i, k := range n.keys {
		out[i] = pair{key: k, val: n.vals[i]}
	}
	return out
}

// fromYAML converts a decoded yaml.v3 document.
func fromYAML(y *yaml.Node, file string) (*node, error) {
	pos := position{file: file, line: y.Line, col: y.Column}

	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return &node{kind: mapNode, pos: pos}, nil
		}
		return fromYAML(y.Content[0], file)

	case yaml.AliasNode:
		return fromYAML(y.Alias, file)

	case yaml.ScalarNode:
		return &node{kind: scalarNode, value: y.Value, null: y.Tag == "!!null", pos: pos}, nil

	case yaml.SequenceNode:
		n := &node{kind: listNode, pos: pos}
		for _, c := range y.Content {
			item, err := fromYAML(c, file)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, item)
		}
		return n, nil

	case yaml.MappingNode:
		n := &node{kind: mapNode, pos: pos}
		seen := make(map[string]bool, len(y.Content)/2)
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, &CompileError{Field: "yaml", Message: "map keys must be scalars", File: file, Line: k.Line, Column: k.Column}
			}
			if seen[k.Value] {
				return nil, &CompileError{Field: "yaml", Message: "duplicate key " + strconv.Quote(k.Value), File: file, Line: k.Line, Column: k.Column}
			}
			seen[k.Value] = true

			val, err := fromYAML(v, file)
			if err != nil {
				return nil, err
			}
			n.keys = append(n.keys, k.Value)
			n.vals = append(n.vals, val)
		}
		return n, nil

	default:
		return nil, &CompileError{Field: "yaml", Message: "unsupported YAML node", File: file, Line: y.Line, Column: y.Column}
	}
}

// fromCUE converts a concrete CUE value. Regular fields keep declaration
// order; definitions and hidden fields are skipped.
func fromCUE(v cue.Value) (*node, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	pos := posFromCUE(v.Pos())

	switch v.IncompleteKind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		n := &node{kind: mapNode, pos: pos}
		for iter.Next() {
			val, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			n.keys = append(n.keys, iter.Selector().Unquoted())
			n.vals = append(n.vals, val)
		}
		return n, nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		n := &node{kind: listNode, pos: pos}
		for iter.Next() {
			item, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, item)
		}
		return n, nil

	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &node{kind: scalarNode, value: s, pos: pos}, nil

	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &node{kind: scalarNode, value: strconv.FormatInt(i, 10), pos: pos}, nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &node{kind: scalarNode, value: strconv.FormatBool(b), pos: pos}, nil

	case cue.NullKind:
		return &node{kind: scalarNode, null: true, pos: pos}, nil

	default:
		return nil, &CompileError{
			Field:   "cue",
			Message: "unsupported value kind " + v.IncompleteKind().String(),
			File:    pos.file,
			Line:    pos.line,
			Column:  pos.col,
		}
	}
}

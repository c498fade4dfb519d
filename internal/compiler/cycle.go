package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// AnalyzeCycles performs static cycle analysis on trigger rules.
//
// It builds an event graph (event → events its actions' triggers may fire)
// and detects strongly connected components. Cycles are reported as
// warnings, not errors, because they may be intentional:
//   - Polling loops that re-fire until a pattern stops matching
//   - Crawlers that follow discovered links
//   - Self-correcting feedback loops
//
// The algorithm:
//  1. Build the event graph from trigger rules
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// A DAG (no cycles) returns an empty warning list. Runtime bounds (max
// tasks, max depth) are what actually stop a cycle; this analysis only
// points at where one may run.
func AnalyzeCycles(wf *ir.Workflow) []Warning {
	if wf == nil || len(wf.Order) == 0 {
		return []Warning{}
	}

	graph, order := buildEventGraph(wf)
	sccs := tarjanSCC(graph, order)

	warnings := []Warning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// eventGraph maps event → events that could be fired by its actions.
type eventGraph map[string][]string

// buildEventGraph constructs the trigger graph. Edges to undefined events
// are dropped; they cannot be part of a cycle. The returned order is the
// workflow's declaration order, used to keep output deterministic.
func buildEventGraph(wf *ir.Workflow) (eventGraph, []string) {
	graph := make(eventGraph, len(wf.Order))
	for _, event := range wf.Order {
		seen := make(map[string]bool)
		graph[event] = []string{}
		for _, spec := range wf.Events[event] {
			for _, tr := range spec.Triggers {
				for _, next := range tr.Events {
					if _, defined := wf.Events[next]; !defined || seen[next] {
						continue
					}
					seen[next] = true
					graph[event] = append(graph[event], next)
				}
			}
		}
	}
	return graph, wf.Order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph eventGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of event names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph eventGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a Warning.
//
// For self-loops, the path is [event, event].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph eventGraph) Warning {
	if len(scc) == 1 {
		event := scc[0]
		return Warning{
			Code:    WarnCycle,
			Path:    []string{event, event},
			Event:   event,
			Message: fmt.Sprintf("Self-triggering event detected: %s → %s", event, event),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return Warning{
		Code:    WarnCycle,
		Path:    path,
		Event:   path[0],
		Message: fmt.Sprintf("Potential cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the last-popped node (the SCC root, earliest in
// declaration order), follow edges to other SCC members, and continue until
// we return to start.
func reconstructCyclePath(scc []string, graph eventGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}

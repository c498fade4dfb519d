package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Stored   map[string]string // Final stored values for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Stored) > 0 {
		fmt.Fprintf(&buf, "\nStored values:\n")
		for _, k := range ir.IRRecord(e.Stored).SortedKeys() {
			fmt.Fprintf(&buf, "  %s=%s\n", k, e.Stored[k])
		}
	}

	return buf.String()
}

// assertStored checks that a key holds exactly the expected value.
func assertStored(snap ir.Snapshot, a Assertion) error {
	got, ok := snap.Stored[a.Key]
	if ok && got == *a.Value {
		return nil
	}
	actual := "key not stored"
	if ok {
		actual = fmt.Sprintf("%s=%q", a.Key, got)
	}
	return &AssertionError{
		Type:     AssertStored,
		Expected: fmt.Sprintf("%s=%q", a.Key, *a.Value),
		Actual:   actual,
		Stored:   snap.Stored,
	}
}

// assertAbsent checks that a key was never stored.
func assertAbsent(snap ir.Snapshot, a Assertion) error {
	got, ok := snap.Stored[a.Key]
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertAbsent,
		Expected: fmt.Sprintf("%s not stored", a.Key),
		Actual:   fmt.Sprintf("%s=%q", a.Key, got),
		Stored:   snap.Stored,
	}
}

// assertArrayCount checks the exact length of an array. A missing array
// has length zero.
func assertArrayCount(snap ir.Snapshot, a Assertion) error {
	if n := len(snap.Arrays[a.Key]); n != *a.Count {
		return &AssertionError{
			Type:     AssertArrayCount,
			Expected: fmt.Sprintf("%d items in %s", *a.Count, a.Key),
			Actual:   fmt.Sprintf("%d items", n),
		}
	}
	return nil
}

// assertArrayContains checks that an array holds the scalar Value, or a
// record containing every pair of Record (subset semantics).
func assertArrayContains(snap ir.Snapshot, a Assertion) error {
	for _, item := range snap.Arrays[a.Key] {
		switch v := item.(type) {
		case ir.IRString:
			if a.Value != nil && string(v) == *a.Value {
				return nil
			}
		case ir.IRRecord:
			if a.Record != nil && matchRecord(v, a.Record) {
				return nil
			}
		}
	}

	want := fmt.Sprintf("record %v", a.Record)
	if a.Value != nil {
		want = fmt.Sprintf("%q", *a.Value)
	}
	return &AssertionError{
		Type:     AssertArrayContains,
		Expected: fmt.Sprintf("%s contains %s", a.Key, want),
		Actual:   fmt.Sprintf("%s = %s", a.Key, formatArray(snap.Arrays[a.Key])),
	}
}

// matchRecord reports whether every expected pair is present in actual.
func matchRecord(actual ir.IRRecord, expected map[string]string) bool {
	for k, want := range expected {
		if got, ok := actual[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func formatArray(arr ir.IRArray) string {
	if len(arr) == 0 {
		return "[]"
	}
	parts := make([]string, len(arr))
	for i, item := range arr {
		switch v := item.(type) {
		case ir.IRString:
			parts[i] = fmt.Sprintf("%q", string(v))
		case ir.IRRecord:
			pairs := make([]string, 0, len(v))
			for _, k := range v.SortedKeys() {
				pairs = append(pairs, fmt.Sprintf("%s:%q", k, v[k]))
			}
			parts[i] = "{" + strings.Join(pairs, " ") + "}"
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// assertCount compares a trace count against the expected count.
func assertCount(result *Result, a Assertion, kind engine.NoticeKind) error {
	got := result.Count(kind, a.Action)
	if got == *a.Count {
		return nil
	}
	what := string(kind)
	if a.Action != "" {
		what += " for " + a.Action
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s", *a.Count, what),
		Actual:   fmt.Sprintf("%d", got),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStored:
			err = assertStored(result.Snapshot, assertion)
		case AssertAbsent:
			err = assertAbsent(result.Snapshot, assertion)
		case AssertArrayCount:
			err = assertArrayCount(result.Snapshot, assertion)
		case AssertArrayContains:
			err = assertArrayContains(result.Snapshot, assertion)
		case AssertTaskCount:
			err = assertCount(result, assertion, engine.NoticeTaskStarted)
		case AssertRejectedCount:
			err = assertCount(result, assertion, engine.NoticeSpawnRejected)
		case AssertSnapshotCount:
			if result.Snapshots != *assertion.Count {
				err = &AssertionError{
					Type:     AssertSnapshotCount,
					Expected: fmt.Sprintf("%d snapshots", *assertion.Count),
					Actual:   fmt.Sprintf("%d snapshots", result.Snapshots),
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/ir"
)

// DefaultTimeout bounds a scenario run that never goes idle.
const DefaultTimeout = 30 * time.Second

// Scenario defines a conformance test scenario.
// A scenario fires one root event against a workflow, runs the real engine
// until no task is live, and asserts on the final target state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Workflow is the path to a workflow file, relative to the scenario
	// file location. Exactly one of Workflow and Inline is set.
	Workflow string `yaml:"workflow,omitempty"`

	// Inline is a YAML workflow embedded in the scenario.
	Inline string `yaml:"inline,omitempty"`

	// Event is the root event to fire. Defaults to "start".
	Event string `yaml:"event,omitempty"`

	// Store seeds the target before the run.
	Store map[string]string `yaml:"store,omitempty"`

	// Limits override the engine's spawn bounds.
	Limits Limits `yaml:"limits,omitempty"`

	// Timeout fails the scenario if the run is still busy after it.
	// Defaults to DefaultTimeout.
	Timeout string `yaml:"timeout,omitempty"`

	// Duration stops the run after a fixed time instead of waiting for
	// idle. Used for workflows with listeners, which never finish.
	Duration string `yaml:"duration,omitempty"`

	// Assertions validate the final state and the trace.
	// Supported types: stored, absent, array_count, array_contains,
	// task_count, rejected_count, snapshot_count
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id. If empty, defaults to
	// "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// dir is the scenario file's directory, used to resolve Workflow.
	dir string
}

// Limits mirrors the engine bounds; nil leaves the engine default.
type Limits struct {
	MaxTasks *int `yaml:"max_tasks,omitempty"`
	MaxDepth *int `yaml:"max_depth,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stored": Key holds exactly Value
	// - "absent": Key was never stored
	// - "array_count": array Key holds exactly Count items
	// - "array_contains": array Key holds Value (scalar) or a record
	//   containing every pair in Record
	// - "task_count": exactly Count tasks started (optionally for Action)
	// - "rejected_count": exactly Count spawns were rejected
	// - "snapshot_count": exactly Count snapshots were persisted
	Type string `yaml:"type"`

	Key    string            `yaml:"key,omitempty"`
	Value  *string           `yaml:"value,omitempty"`
	Record map[string]string `yaml:"record,omitempty"`
	Action string            `yaml:"action,omitempty"`
	Count  *int              `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStored        = "stored"
	AssertAbsent        = "absent"
	AssertArrayCount    = "array_count"
	AssertArrayContains = "array_contains"
	AssertTaskCount     = "task_count"
	AssertRejectedCount = "rejected_count"
	AssertSnapshotCount = "snapshot_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. A relative Workflow path resolves
// against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if (s.Workflow == "") == (s.Inline == "") {
		return errors.New("exactly one of workflow or inline is required")
	}
	for _, field := range []struct{ name, value string }{
		{"timeout", s.Timeout},
		{"duration", s.Duration},
	} {
		if field.value == "" {
			continue
		}
		if d, err := time.ParseDuration(field.value); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %q", field.name, field.value)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertStored:
		if a.Key == "" || a.Value == nil {
			return errors.New("stored requires key and value")
		}
	case AssertAbsent:
		if a.Key == "" {
			return errors.New("absent requires key")
		}
	case AssertArrayCount:
		if a.Key == "" || a.Count == nil {
			return errors.New("array_count requires key and count")
		}
	case AssertArrayContains:
		if a.Key == "" || (a.Value == nil) == (a.Record == nil) {
			return errors.New("array_contains requires key and exactly one of value or record")
		}
	case AssertTaskCount, AssertRejectedCount, AssertSnapshotCount:
		if a.Count == nil {
			return fmt.Errorf("%s requires count", a.Type)
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// rootEvent returns the event the scenario fires.
func (s *Scenario) rootEvent() string {
	if s.Event == "" {
		return "start"
	}
	return s.Event
}

// runID returns the fixed run id for the scenario.
func (s *Scenario) runID() string {
	if s.RunID == "" {
		return "test-run-default"
	}
	return s.RunID
}

// workflowPath resolves Workflow against the scenario file location.
func (s *Scenario) workflowPath() string {
	if filepath.IsAbs(s.Workflow) || s.dir == "" {
		return s.Workflow
	}
	return filepath.Join(s.dir, s.Workflow)
}

// compile loads the workflow the scenario runs.
func (s *Scenario) compile() (*ir.Workflow, error) {
	if s.Inline != "" {
		return compiler.CompileYAML([]byte(s.Inline), s.Name+".inline.yaml")
	}
	loaded, err := compiler.LoadWorkflow(s.workflowPath())
	if err != nil {
		return nil, err
	}
	return loaded.Workflow, nil
}

// durations returns the parsed timeout and duration; validateScenario has
// already checked both.
func (s *Scenario) durations() (timeout, duration time.Duration) {
	timeout = DefaultTimeout
	if s.Timeout != "" {
		timeout, _ = time.ParseDuration(s.Timeout)
	}
	if s.Duration != "" {
		duration, _ = time.ParseDuration(s.Duration)
	}
	return timeout, duration
}

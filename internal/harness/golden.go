package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cascade/internal/ir"
)

// SnapshotGolden renders the golden form of a scenario's final state:
// canonical JSON of the scenario name and the target snapshot. Array
// order is kept, so scenarios whose arrays are filled by concurrent tasks
// should assert on contents instead of using golden files.
func SnapshotGolden(scenarioName string, snap ir.Snapshot) ([]byte, error) {
	if snap.Stored == nil {
		snap.Stored = map[string]string{}
	}
	if snap.Arrays == nil {
		snap.Arrays = map[string]ir.IRArray{}
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"snapshot":      snap,
	})
}

// RunWithGolden executes a scenario and compares the final snapshot against
// a golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's snapshot against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotGolden(scenarioName, result.Snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

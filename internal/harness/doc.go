// Package harness provides conformance testing for cascade workflows.
//
// The harness compiles a workflow, fires a root event through the real
// engine, waits for the run to go idle, and validates the final target
// state and the notice trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	workflow: workflows/recon.yaml   # or inline: | ...
//	event: start
//	store:
//	  output_dir: /tmp/out
//	limits:
//	  max_tasks: 10
//	  max_depth: 2
//	assertions:
//	  - type: stored
//	    key: domain
//	    value: example.com
//	  - type: array_contains
//	    key: services
//	    record: { port: "80" }
//	  - type: task_count
//	    action: scan
//	    count: 2
//
// # Assertion Types
//
//   - stored: a key holds exactly the given value
//   - absent: a key was never stored
//   - array_count: an array holds exactly N items
//   - array_contains: an array holds a scalar or a matching record
//   - task_count: N tasks started, optionally for one action
//   - rejected_count: N spawns were rejected by the run bounds
//   - snapshot_count: N snapshots were persisted
//
// # Deterministic Testing
//
// Runs use a fixed run id (scenario.run_id or "test-run-default") and
// discard engine logs. The final snapshot is serialized as canonical JSON
// for golden file comparison; the trace is not, since concurrent tasks
// start in no fixed order.
package harness

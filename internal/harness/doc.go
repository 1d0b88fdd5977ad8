// Package harness provides conformance testing for the autosave engine.
//
// The harness loads YAML scenarios, executes them against a real engine
// on virtual time, and validates the resulting trace of status
// transitions and persist calls.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario-name
//	description: "What this scenario validates"
//	record: record-1
//	port:
//	  outcomes:
//	    - fail: true
//	      message: "backend unavailable"
//	steps:
//	  - open:
//	      initial: { title: "First" }
//	  - edit: { field: body, value: "draft" }
//	  - advance: 1500ms
//	  - close: true
//	assertions:
//	  - type: final_status
//	    status: clean
//	  - type: save_count
//	    count: 2
//
// Scenario files are validated three ways before execution: against the
// embedded CUE schema (schema.cue), by strict YAML decoding, and by
// semantic checks (first step must open, one directive per step).
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - final_status: engine status after the last step
//   - save_count: exact number of persist attempts
//   - status_order: exact sequence of status transitions
//   - stored_field: a field value in the port's final snapshot
//   - last_error: substring of the engine's last save error
//
// # Deterministic Testing
//
// Every run uses a virtual-time scheduler (testutil.FakeScheduler), a
// scripted port, and sequential attempt tokens, so the same scenario
// always yields byte-identical traces. Advance steps walk time forward
// deadline by deadline with full settling in between, which is what
// lets a single "advance: 10s" exercise a debounce fire, a failed
// attempt, and the retry it arms.
//
// Traces interleave status changes and port calls on the engine's
// logical clock and are compared against golden files with goldie.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/retry-then-converge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.New().Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness

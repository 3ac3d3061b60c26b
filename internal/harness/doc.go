// Package harness runs end-to-end build scenarios.
//
// A scenario names spec files, the candidates a stub generator should hand
// back, and a sequence of builds with their expected outcomes. Each build
// goes through the real loader, engine, sandbox validator, artifact writer
// and lock file, so a scenario exercises the whole pipeline except the
// network.
//
// # Scenario Format
//
//	name: add_numbers
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/functions.spec.cue
//	candidates:
//	  addNumbers: |
//	    func(a, b int) map[string]int { return map[string]int{"result": a + b} }
//	builds:
//	  - expect:
//	      published: [addNumbers]
//	      generator_calls: 1
//	  - delete_artifacts: [addNumbers]
//	    expect:
//	      published: [addNumbers]
//	      reasons: {addNumbers: artifact missing}
//	assertions:
//	  - type: artifact_exists
//	    spec: addNumbers
//	  - type: invoke
//	    spec: addNumbers
//	    args: [20, 22]
//	    result: {result: 42}
//
// # Assertion Types
//
//   - artifact_exists / artifact_absent: the spec's artifact file
//   - lock_contains / lock_absent: the committed lock file entry, which must
//     equal the spec's current fingerprint when present
//   - invoke: loads the published artifact and calls it in the sandbox
//   - history_runs: number of runs recorded in the history database
//
// # Deterministic Testing
//
// Run IDs are fixed (run-1, run-2, ...) and time comes from a step clock,
// so the build trace is identical across runs and can be compared against
// golden files.
package harness

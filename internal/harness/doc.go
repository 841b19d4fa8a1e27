// Package harness runs scripted loop scenarios and checks their outcome.
//
// A scenario declares systems whose bodies are scripted rather than coded:
// each system calls a list of hooks every tick and can be told to fail or
// panic on given ticks. Steps then drive the loop (ticks, evictions,
// replacements, skips, late scheduling) and assertions inspect the result.
//
// # Scenario Format
//
//	name: evict_and_reschedule
//	description: "Evicting a system releases its storage"
//	manifest: ../manifests/game     # optional CUE manifest, relative to the file
//	systems:
//	  - name: Y
//	    priority: 0
//	    after: [X]
//	    hooks:
//	      - site: cache
//	        retain: true
//	    fail_on: [3]
//	steps:
//	  - tick: default
//	    count: 2
//	  - evict: Y
//	assertions:
//	  - type: order
//	    event: default
//	    systems: [Z, X]
//	  - type: released
//	    system: Y
//	    count: 1
//
// # Assertion Types
//
//   - order: the resolved order of an event group
//   - runs: how many times a system body ran
//   - entries: how many hook entries a system currently holds
//   - released: how many release callbacks ran for hooks a system created
//   - error: a system has a retained error, optionally containing text
//   - no_errors: no system has a retained error
//   - state: a system's lifecycle state
//   - step_error: some step failed with the given error code
//
// # Deterministic Testing
//
// Scenarios run against a manual time source advanced by a fixed frame
// interval per tick and a fresh logical clock, so traces are identical
// across runs and can be compared against golden files.
package harness

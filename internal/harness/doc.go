// Package harness runs registered pipelines against YAML scenarios and
// checks the resulting journals.
//
// # Scenario Format
//
//	name: cue_people
//	description: "People are validated against the Person schema"
//	pipeline: cue
//	config:
//	  path: "#Person"
//	  schema: |
//	    #Person: { name: string, age: int & >=0 }
//	concurrency: 2
//	inputs:
//	  - { id: p1, name: ada, age: 36 }
//	  - { id: p2, name: bob, age: -1 }
//	expect:
//	  p1: { status: success, output: { name: ada } }
//	  p2: { status: error, error_contains: age }
//	assertions:
//	  - type: entry_count
//	    status: error
//	    count: 1
//	  - type: entry_order
//	    ids: [p1, p2]
//	  - type: stored
//	    expect: { entries: 2, failures: 1 }
//
// # Assertion Types
//
//   - entry_count: exactly N entries, optionally only those with a status
//   - entry_order: the listed input ids appear in this relative order
//   - stored: the journal survives a store round trip with the same digest,
//     and its stored summary matches expect
//
// # Deterministic Testing
//
// Scenarios run with testutil.DeterministicClock and sequential ids, so
// journal ids, attempt ids and run timestamps are identical across runs.
// Golden snapshots exclude per-entry timing, so they also hold for
// scenarios with concurrency above one.
package harness

// Package harness runs conformance scenarios against a docstore.
//
// A scenario registers a CUE document catalog on a fresh SQLite store,
// drives a session through store, delete, save and read steps, and checks
// the trace and the committed state.
//
// # Scenario Format
//
//	name: upsert_replaces
//	description: "Storing an existing id replaces the payload"
//	catalog:
//	  - documents.cue
//	setup:
//	  - op: store
//	    type: Person
//	    docs: [{id: p1, name: Ada}]
//	flow:
//	  - op: store
//	    type: Person
//	    docs: [{id: p1, name: Ada Lovelace}]
//	  - op: load
//	    type: Person
//	    ids: [p1]
//	    expect:
//	      docs: [{id: p1, name: Ada}]
//	  - op: save
//	assertions:
//	  - type: trace_order
//	    events: [store Person, save]
//	  - type: final_state
//	    doc: Person
//	    id: p1
//	    expect: {name: Ada Lovelace}
//
// Setup steps run in their own session, saved before the flow starts.
// Flow steps share one session; discard closes it and opens a new one.
//
// # Assertion Types
//
//   - trace_contains: an event with the label (and optional outcome) occurred
//   - trace_order: labels occur in the given order
//   - trace_count: a label occurs exactly N times
//   - final_state: committed document count, or one document by id
//
// Event labels are the op, followed by the type when there is one:
// "save", "discard", "store Person", "where Invoice".
//
// # Deterministic Testing
//
// UUIDs assigned on store come from testutil.SequentialUUIDs, and events
// carry a sequence number, so traces are identical across runs and can be
// compared with golden files via RunWithGolden.
package harness

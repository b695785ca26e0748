// Package harness runs library scenarios as executable contract tests.
//
// Each scenario runs in a fresh in-memory SQLite store through the real
// engine, with fixed tokens so the produced trace is deterministic and can be
// compared against a golden file.
//
// # Scenario Format
//
//	name: owner_update
//	description: "Owner renames a book"
//	seed:
//	  books: ["Book1;Category1;Author1"]
//	  owners: [{owner: alice, index: 0}]
//	flow:
//	  - invoke: update_book
//	    caller: alice
//	    args: {index: 0, name: UpdatedBook1}
//	    expect:
//	      status: ok
//	      result: {message: "Success: Book updated"}
//	assertions:
//	  - type: final_state
//	    books: ["UpdatedBook1;Category1;Author1"]
//
// A step may instead expect a runtime error code (expect: {error:
// INVALID_ARGS}); such calls are not journaled and leave no trace.
//
// # Assertion Types
//
//   - trace_contains: an invocation of op with matching args (subset) exists
//   - trace_order: ops appear in the given order
//   - trace_count: op appears exactly count times
//   - final_state: persisted books and/or owners equal the given lists
//   - owner_books: get_books_by_owner_id(owner) on the final state equals books
//
// After the flow, the journal is replayed from the seed and any divergence
// fails the scenario.
package harness

// Package harness runs roasting scenarios as executable contract tests.
//
// A scenario drives a real engine over a fresh in-memory store: it stocks
// the ledger, plans and executes production runs, then checks the trace and
// the resulting ledger state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: house_blend
//	description: "Blend two origins and cost the output lot"
//	catalog: ../catalog          # directory of CUE files, relative to this file
//	id_prefix: hb                # deterministic ids: hb-0001, hb-0002, ...
//	start: 2024-03-01T08:00:00Z  # the clock advances one minute per read
//	setup:
//	  - action: receive
//	    args: { material: green-eth, qty: "10", unit_cost: "40" }
//	flow:
//	  - invoke: execute
//	    args:
//	      recipe: house
//	      inputs: { green-eth: "6", green-bra: "4" }
//	      output: "8.6"
//	    expect:
//	      case: OK
//	      result: { batch: RB-20240301-001, unit_cost: "46.00" }
//	assertions:
//	  - type: stock
//	    material: house-blend
//	    expect: { quantity: "8.6" }
//	  - type: conservation
//
// Quote quantities and costs: YAML floats lose the decimal literal.
//
// # Actions
//
//   - receive: purchase into a new lot (material, qty, unit_cost, at, note)
//   - record: sale, loss or adjustment (kind, material, qty, unit_cost, note)
//   - reverse: compensating entry for a ledger entry (entry, note)
//   - plan: backward quantity plan (recipe, target, loss)
//   - execute: production run (recipe, inputs, output, target, loss, notes)
//   - batch, batches: batch lookups (id) and listings (material, kind, limit, cursor)
//   - stock: derived stock and lot value (material)
//   - advance: move the clock forward (by, a Go duration such as "24h")
//
// A step that fails with a domain error completes with the error code as
// its case, for example INSUFFICIENT_STOCK. Expect clauses default to OK.
//
// # Assertion Types
//
//   - trace_contains: Verifies an action appears in the trace with matching args
//   - trace_order: Verifies actions appear in specified order
//   - trace_count: Verifies an action appears exactly N times
//   - final_state: Queries a ledger table and verifies one row's values
//   - row_count: Counts the rows of a ledger table matching where
//   - stock: Compares a material's quantity, value and lot count
//   - conservation: Checks every material's entries against its lots
//
// # Deterministic Testing
//
// Ids come from engine.FixedGenerator and time from testutil.StepClock, so
// identical scenarios produce identical traces for golden snapshot comparison.
package harness

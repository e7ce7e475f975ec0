// Package store provides SQLite-backed durable storage for the roastery ledger
// and production batches.
//
// The store implements an append-only log with:
//   - Ledger entries: signed stock changes per material
//   - Lots: cost-tagged quantities created by positive entries
//   - Lot draws: which lots each negative entry consumed, and at what cost
//   - Production batches: one immutable record per successful execution
//
// # Invariants
//
// Conservation: for every material, the sum of its entries' deltas equals the
// sum of its lots' remaining quantities. Lot remaining quantities change only
// through entries (draws and reversals), never by direct edit.
//
// Ordering: lots are consumed in (acquired_at, seq) order; listings use seq, the
// insertion order, so results are identical across reads.
//
// Append-only: entries and batches are never updated or deleted. A correction
// is a reversal entry pointing at the original through reverses_id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce referential integrity
//
// Quantities and costs are stored as decimal TEXT; timestamps as Unix
// nanoseconds.
package store

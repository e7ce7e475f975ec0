// Package engine implements roasting production over the inventory ledger.
//
// The engine is the facade the CLI and the scenario harness call into. It
// resolves recipes from the catalog, plans quantities with the planner and
// executes production runs against the store.
//
// Plan is pure and takes no locks. Any number of callers may plan
// concurrently; a plan is advisory and proves nothing at execution time.
//
// Execute, Record and Reverse mutate the ledger. Each acquires the per-material
// lock set for every material it touches (sorted, so two runs over {A, B} and
// {B, C} serialize on B only), then opens one IMMEDIATE SQLite transaction,
// re-reads lot stock under the lock and either commits every write or none.
// Locks are always taken before the transaction begins: the store has a single
// connection, and waiting on a material lock while holding it would deadlock.
//
// Failures of the underlying storage surface as STORAGE_UNAVAILABLE. Domain
// failures keep their own codes and are never reported as storage errors.
package engine

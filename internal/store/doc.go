// Package store provides the SQLite-backed run ledger.
//
// Every maintenance command that walks the dataset (reconcile, renumber,
// migrate --apply) records a run and one result row per record:
//   - runs: command, policy version and content hash, dry-run flag
//   - results: outcome, record fingerprints before and after, the diffs
//
// # Ordering
//
// Runs and results carry a logical seq. All listing queries order by
// seq ASC with a binary-collated tiebreaker, so output is identical
// across machines regardless of wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

// Package store provides SQLite-backed run history for formcheck.
//
// Every scenario run is appended as one row in runs, with its trace events
// in run_events. Rows are never updated; a rerun is a new row.
//
// # Ordering
//
//   - Runs are listed newest first by insertion seq, never by wall time
//   - Trace events are read back ORDER BY seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Run IDs are UUIDv7, so they also sort by creation time across databases.
package store

// Package store provides SQLite-backed build history.
//
// Every build run is appended as one row in runs plus one row per spec in
// outcomes. History is informational: the lock file, not this database,
// decides what gets rebuilt.
//
// # Ordering
//
//   - Runs list newest first: ORDER BY started_at DESC, run_id DESC.
//   - Outcomes keep processing order: ORDER BY seq ASC.
//
// Timestamps are stored as RFC 3339 UTC text with nanoseconds so they sort
// lexically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

// Package journal records loop activity in SQLite.
//
// A Journal is a loop.Observer. Between BeginRun and EndRun it appends one
// row per tick, one row per system run within the tick, and one row per
// failure. Records are keyed by the run ID and the tick's logical sequence
// number.
//
// # Ordering
//
// All queries order by logical position (ordinal for runs, seq then
// position or id for tick data), never by timestamps, so a journal read
// back is stable regardless of wall-clock skew.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal

// Package store provides the SQLite-backed check journal.
//
// Every phase of a guarded call the engine executes or skips can be
// recorded as one row in the checks table: call id, logical sequence
// number, phase, contract kind, subject, outcome, and for violations the
// offending clause and message. The journal is append-only.
//
// # Ordering
//
//   - All ordering uses seq INTEGER (the engine's logical clock), never
//     timestamps
//   - Queries use ORDER BY seq ASC, id ASC, so reads are deterministic
//   - UNIQUE(call_id, seq) makes re-recording the same event a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Fingerprints stored with each row are computed by internal/ir from the
// canonical JSON form of the composed contract.
package store

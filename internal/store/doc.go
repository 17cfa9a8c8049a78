// Package store records release history in SQLite.
//
// The history is an append-only log of three tables:
//   - builds: one row per successful build invocation
//   - build_artifacts: the (name, sha256) pairs a build emitted
//   - installs: one row per install attempt, successful or not
//
// History is advisory. The release manifest and pin files remain the source
// of truth; a missing or unwritable history database never changes the
// outcome of a build or install.
//
// # Ordering
//
// List queries return newest first and break timestamp ties by id:
//
//	ORDER BY <time> DESC, id COLLATE BINARY DESC
//
// Timestamps are stored as second-precision UTC text (2006-01-02T15:04:05Z),
// which sorts lexically in time order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

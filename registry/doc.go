// Package registry owns the logical permission data of a guild: roles and
// their hierarchy positions, member role assignments, and per-channel
// permission overrides.
//
// # Consistency model
//
// Reads go through [Store.View], which copies a point-in-time snapshot of
// the guild under a read lock; the resolver never observes a half-applied
// mutation. Mutations are optimistic: every entity carries a version stamp,
// a caller may pin the version it read, and a conflicting concurrent commit
// fails with [ErrVersionConflict] instead of silently overwriting. Locks are
// held only for the duration of a single copy or commit; nothing in this
// package blocks on I/O.
//
// # What this package must NOT do
//
//   - Make authorization decisions (hierarchy, escalation, permission
//     checks belong to the engine).
//   - Import guildguard or elevation (no upward imports).
//   - Persist anything: durable storage is the embedding application's
//     concern.
package registry

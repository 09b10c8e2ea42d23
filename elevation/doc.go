// Package elevation tracks time-limited elevated-privilege sessions.
//
// Elevation is a two-state machine per user: NotElevated and Elevated. A
// grant records when it was made and when it lapses; expiry is evaluated
// lazily against a clock on every read, so a session is authoritative the
// instant its deadline passes whether or not any background sweep has run.
// Sweeping exists only to surface expirations proactively (UI state flips,
// audit trails), never to enforce them.
//
// Two stores are provided: an in-process MemoryStore and a RedisStore for
// deployments where elevation must survive restarts or be shared across
// nodes. Both apply mutations through an atomic read-modify-write, so
// concurrent grants and revocations for the same user serialize cleanly.
//
// This package does not verify credentials. Deciding whether a user may
// elevate is the caller's job; by the time Grant is called, verification
// has already happened.
package elevation

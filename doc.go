// Package guildguard is an embeddable permission resolution and elevation
// engine for chat/voice platforms organized into guilds.
//
// The engine answers one question: may this user perform this action in
// this guild (and optionally this channel)? It also guards every path that
// could change the answer. It owns guild roles and their hierarchy,
// per-channel allow/deny overrides, member-role assignment, and a
// time-limited elevation session required on top of ordinary permissions
// before destructive administrative actions.
//
// guildguard is transport-agnostic: it exposes no HTTP or WebSocket
// surface and persists nothing itself beyond an optional Redis-backed
// elevation store. API handlers call Check before performing a guarded
// action and route every role, override, and elevation mutation through
// the Engine so hierarchy and escalation rules are enforced in one place.
//
// Construct an Engine with the fluent builder:
//
//	engine, err := guildguard.New().
//		WithConfig(cfg).
//		WithVerifier(verifier).
//		WithAuditSink(sink).
//		Build()
//
// All Engine methods are safe for concurrent use. Mutations use optimistic
// versioning: callers may pin the version they read, and a conflicting
// concurrent edit fails with ErrVersionConflict instead of silently
// overwriting.
package guildguard

package guildguard

import (
	"context"
	"time"

	"github.com/guildguard/guildguard/elevation"
	"github.com/guildguard/guildguard/permission"
)

// Verifier performs the secondary verification backing an elevation
// request (TOTP, password re-entry, hardware key: the mechanism is the
// integrator's choice). A nil error means the proof checked out.
type Verifier interface {
	Verify(ctx context.Context, userID, proof string) error
}

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(ctx context.Context, userID, proof string) error

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, userID, proof string) error {
	return f(ctx, userID, proof)
}

// RolePatch is a partial role update. Nil fields are left untouched.
// ExpectedVersion pins the version the caller read; zero skips the check.
type RolePatch struct {
	Name            *string
	Color           *string
	Permissions     *permission.Set
	ExpectedVersion uint64
}

// ElevationStatus is the read projection of a user's elevation state. The
// countdown is always derived from ExpiresAt at read time, never stored.
type ElevationStatus struct {
	State     elevation.State
	GrantedAt time.Time
	ExpiresAt time.Time
	Remaining time.Duration
	// Receipt is a signed proof of the session, present only when receipts
	// are enabled.
	Receipt string
}

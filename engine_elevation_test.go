package guildguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guildguard/guildguard/elevation"
	"github.com/guildguard/guildguard/permission"
)

func TestDestructiveGateAcrossExpiry(t *testing.T) {
	f := newTestEngine(t)
	f.seedGuild(t)
	ctx := context.Background()

	// mod holds KICK_MEMBERS but has no session yet.
	err := f.engine.CheckDestructive(ctx, "g1", "", "mod", permission.KickMembers)
	if !errors.Is(err, ErrNotElevated) {
		t.Fatalf("unelevated destructive check: got %v, want ErrNotElevated", err)
	}

	if _, err := f.engine.Elevate(ctx, "mod", "proof"); err != nil {
		t.Fatalf("Elevate: %v", err)
	}

	// One second before expiry the action goes through.
	f.clock.Advance(15*time.Minute - time.Second)
	if err := f.engine.CheckDestructive(ctx, "g1", "", "mod", permission.KickMembers); err != nil {
		t.Fatalf("destructive check at T+14:59: %v", err)
	}

	// Two seconds later it is rejected; the near-miss does not re-grant.
	f.clock.Advance(2 * time.Second)
	err = f.engine.CheckDestructive(ctx, "g1", "", "mod", permission.KickMembers)
	if !errors.Is(err, ErrNotElevated) {
		t.Fatalf("destructive check at T+15:01: got %v, want ErrNotElevated", err)
	}

	status, err := f.engine.ElevationStatus(ctx, "mod")
	if err != nil {
		t.Fatalf("ElevationStatus: %v", err)
	}
	if status.State != elevation.NotElevated {
		t.Fatalf("state after lapse: %v", status.State)
	}
}

func TestDestructiveGateBindsOwner(t *testing.T) {
	f := newTestEngine(t)
	f.seedGuild(t)
	ctx := context.Background()

	err := f.engine.CheckDestructive(ctx, "g1", "", "owner", permission.BanMembers)
	if !errors.Is(err, ErrNotElevated) {
		t.Fatalf("owner without session: got %v, want ErrNotElevated", err)
	}
	if _, err := f.engine.Elevate(ctx, "owner", "proof"); err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	if err := f.engine.CheckDestructive(ctx, "g1", "", "owner", permission.BanMembers); err != nil {
		t.Fatalf("elevated owner: %v", err)
	}
}

func TestElevateVerificationFailure(t *testing.T) {
	f := newTestEngine(t)
	f.verifier.err = errors.New("bad code")

	_, err := f.engine.Elevate(context.Background(), "mod", "wrong")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("got %v, want ErrVerificationFailed", err)
	}
	status, serr := f.engine.ElevationStatus(context.Background(), "mod")
	if serr != nil {
		t.Fatalf("ElevationStatus: %v", serr)
	}
	if status.State != elevation.NotElevated {
		t.Fatalf("failed verification left a session: %v", status.State)
	}
	if f.engine.MetricsSnapshot().Counters[MetricElevationVerifyFailed] == 0 {
		t.Fatal("MetricElevationVerifyFailed not incremented")
	}
}

func TestElevateRefreshSkipsVerification(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	first, err := f.engine.Elevate(ctx, "mod", "proof")
	if err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	if f.verifier.count() != 1 {
		t.Fatalf("fresh grant used %d verifications, want 1", f.verifier.count())
	}

	f.clock.Advance(5 * time.Minute)
	second, err := f.engine.Elevate(ctx, "mod", "")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if f.verifier.count() != 1 {
		t.Fatalf("refresh re-verified: %d calls", f.verifier.count())
	}
	if !second.GrantedAt.Equal(first.GrantedAt) {
		t.Fatalf("refresh restamped GrantedAt: %v then %v", first.GrantedAt, second.GrantedAt)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Fatalf("refresh did not extend expiry: %v then %v", first.ExpiresAt, second.ExpiresAt)
	}

	// Once lapsed, elevation verifies again.
	f.clock.Advance(time.Hour)
	if _, err := f.engine.Elevate(ctx, "mod", "proof"); err != nil {
		t.Fatalf("fresh grant after lapse: %v", err)
	}
	if f.verifier.count() != 2 {
		t.Fatalf("post-lapse grant used %d verifications, want 2", f.verifier.count())
	}
}

func TestDeelevate(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	// A no-op when there is nothing to end.
	if err := f.engine.Deelevate(ctx, "mod"); err != nil {
		t.Fatalf("idle deelevate: %v", err)
	}

	if _, err := f.engine.Elevate(ctx, "mod", "proof"); err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	if err := f.engine.Deelevate(ctx, "mod"); err != nil {
		t.Fatalf("Deelevate: %v", err)
	}
	status, err := f.engine.ElevationStatus(ctx, "mod")
	if err != nil {
		t.Fatalf("ElevationStatus: %v", err)
	}
	if status.State != elevation.NotElevated {
		t.Fatalf("state after deelevate: %v", status.State)
	}
}

func TestElevateReceiptRoundTrip(t *testing.T) {
	cfg := defaultConfig()
	cfg.Receipt.Enabled = true
	cfg.Receipt.SigningMethod = "hs256"
	cfg.Receipt.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Receipt.Issuer = "guildguard-test"

	engine, err := New().WithConfig(cfg).WithVerifier(&countingVerifier{}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	status, err := engine.Elevate(context.Background(), "mod", "proof")
	if err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	if status.Receipt == "" {
		t.Fatal("grant did not mint a receipt")
	}
	uid, err := engine.VerifyReceipt(status.Receipt)
	if err != nil {
		t.Fatalf("VerifyReceipt: %v", err)
	}
	if uid != "mod" {
		t.Fatalf("receipt certifies %q, want mod", uid)
	}

	// Status reads never mint, even with receipts enabled.
	read, err := engine.ElevationStatus(context.Background(), "mod")
	if err != nil {
		t.Fatalf("ElevationStatus: %v", err)
	}
	if read.Receipt != "" {
		t.Fatal("status read minted a receipt")
	}
}

func TestElevationStatusRemaining(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	if _, err := f.engine.Elevate(ctx, "mod", "proof"); err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	f.clock.Advance(10 * time.Minute)

	status, err := f.engine.ElevationStatus(ctx, "mod")
	if err != nil {
		t.Fatalf("ElevationStatus: %v", err)
	}
	if status.Remaining != 5*time.Minute {
		t.Fatalf("Remaining = %v, want 5m", status.Remaining)
	}
	if status.Receipt != "" {
		t.Fatal("status read minted a receipt")
	}
}

// scriptClock serves a fixed sequence of instants, then repeats the last
// one.
type scriptClock struct {
	mu    sync.Mutex
	times []time.Time
	last  time.Time
}

func (c *scriptClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.times) > 0 {
		c.last = c.times[0]
		c.times = c.times[1:]
	}
	return c.last
}

func TestElevateReverifiesWhenSessionLapsesMidCall(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	if _, err := f.engine.Elevate(ctx, "mod", "proof"); err != nil {
		t.Fatalf("Elevate: %v", err)
	}
	if f.verifier.count() != 1 {
		t.Fatalf("fresh grant used %d verifications, want 1", f.verifier.count())
	}
	start := f.clock.Now()

	// The status read sees an active session, but by the time the
	// refresh commits the session has lapsed. The call must fall back to
	// verification instead of minting an unverified session.
	f.engine.elevations.Now = (&scriptClock{times: []time.Time{
		start.Add(5 * time.Minute),  // status read: still active
		start.Add(30 * time.Minute), // refresh commit: lapsed
	}}).Now

	status, err := f.engine.Elevate(ctx, "mod", "proof")
	if err != nil {
		t.Fatalf("Elevate across lapse: %v", err)
	}
	if f.verifier.count() != 2 {
		t.Fatalf("lapsed session refreshed without verification: %d calls", f.verifier.count())
	}
	if want := start.Add(30 * time.Minute); !status.GrantedAt.Equal(want) {
		t.Fatalf("GrantedAt = %v, want a fresh stamp at %v", status.GrantedAt, want)
	}
}

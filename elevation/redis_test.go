package elevation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, "gel:")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	_, store := newTestRedisStore(t)
	ctx := context.Background()

	granted := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	want := Session{
		UserID:    "alice",
		Reason:    "ban appeal review",
		GrantedAt: granted,
		ExpiresAt: granted.Add(15 * time.Minute),
	}
	if _, err := store.Update(ctx, "alice", func(cur *Session) (*Session, error) {
		if cur != nil {
			t.Fatalf("unexpected existing session: %+v", cur)
		}
		return &want, nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, ok, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("session missing after write")
	}
	if got.UserID != want.UserID || got.Reason != want.Reason {
		t.Fatalf("round trip: got %+v, want %+v", got, want)
	}
	if !got.GrantedAt.Equal(want.GrantedAt) || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("timestamps: got %v/%v, want %v/%v", got.GrantedAt, got.ExpiresAt, want.GrantedAt, want.ExpiresAt)
	}
}

func TestRedisStoreGetMissing(t *testing.T) {
	_, store := newTestRedisStore(t)

	_, ok, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("missing key reported as present")
	}
}

func TestRedisStoreUpdateSeesCurrent(t *testing.T) {
	_, store := newTestRedisStore(t)
	ctx := context.Background()

	now := time.Now()
	first := Session{UserID: "alice", GrantedAt: now, ExpiresAt: now.Add(15 * time.Minute)}
	if _, err := store.Update(ctx, "alice", func(*Session) (*Session, error) {
		return &first, nil
	}); err != nil {
		t.Fatalf("initial write: %v", err)
	}

	if _, err := store.Update(ctx, "alice", func(cur *Session) (*Session, error) {
		if cur == nil {
			t.Fatal("existing record not handed to update")
		}
		next := *cur
		next.ExpiresAt = next.ExpiresAt.Add(15 * time.Minute)
		return &next, nil
	}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, _, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if want := first.ExpiresAt.Add(15 * time.Minute); !got.ExpiresAt.Equal(want) {
		t.Fatalf("extended expiry: got %v, want %v", got.ExpiresAt, want)
	}
}

func TestRedisStoreUpdateNilDeletes(t *testing.T) {
	_, store := newTestRedisStore(t)
	ctx := context.Background()

	now := time.Now()
	sess := Session{UserID: "alice", GrantedAt: now, ExpiresAt: now.Add(time.Minute)}
	if _, err := store.Update(ctx, "alice", func(*Session) (*Session, error) {
		return &sess, nil
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Update(ctx, "alice", func(*Session) (*Session, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("delete via update: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "alice"); ok {
		t.Fatal("record survived nil update")
	}
}

func TestRedisStoreKeyTTLMatchesExpiry(t *testing.T) {
	mr, store := newTestRedisStore(t)
	ctx := context.Background()

	now := time.Now()
	sess := Session{UserID: "alice", GrantedAt: now, ExpiresAt: now.Add(15 * time.Minute)}
	if _, err := store.Update(ctx, "alice", func(*Session) (*Session, error) {
		return &sess, nil
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Redis evicts the key on its own once the deadline passes.
	mr.FastForward(16 * time.Minute)
	if _, ok, _ := store.Get(ctx, "alice"); ok {
		t.Fatal("key outlived its TTL")
	}
}

func TestManagerOnRedisStore(t *testing.T) {
	_, store := newTestRedisStore(t)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(store, 15*time.Minute)
	m.Now = clock.Now
	ctx := context.Background()

	if _, _, err := m.Grant(ctx, "alice", "raid cleanup"); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	clock.Advance(14*time.Minute + 59*time.Second)
	if _, state, _ := m.Status(ctx, "alice"); state != Elevated {
		t.Fatalf("at T+14:59: got %v, want Elevated", state)
	}
	clock.Advance(2 * time.Second)
	if _, state, _ := m.Status(ctx, "alice"); state != NotElevated {
		t.Fatalf("at T+15:01: got %v, want NotElevated", state)
	}
}

package elevation

import (
	"context"
	"errors"
	"time"
)

// ErrSessionLapsed reports a refresh attempt against a session that is
// missing or already expired. Callers must treat it as a fresh elevation
// request, verification included.
var ErrSessionLapsed = errors.New("elevation: session lapsed")

// Manager applies the elevation state machine on top of a Store. It owns
// the TTL policy and the lazy-expiry rule; the store is just persistence.
type Manager struct {
	store Store
	ttl   time.Duration

	// Now is the clock used for grant and expiry decisions. Tests replace
	// it to pin time; everything else leaves it alone.
	Now func() time.Time
}

// NewManager returns a Manager granting sessions of the given TTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl, Now: time.Now}
}

// Status returns the user's current state. Expired records are reported as
// NotElevated immediately and removed opportunistically; removal failures
// are ignored because the comparison already settled the answer. The
// removal re-checks expiry inside the store's atomic update, so a grant
// that commits after this read is never wiped.
func (m *Manager) Status(ctx context.Context, userID string) (Session, State, error) {
	sess, ok, err := m.store.Get(ctx, userID)
	if err != nil {
		return Session{}, NotElevated, err
	}
	if !ok {
		return Session{}, NotElevated, nil
	}
	if !sess.Active(m.Now()) {
		_, _ = m.store.Update(ctx, userID, func(cur *Session) (*Session, error) {
			if cur != nil && cur.Active(m.Now()) {
				return cur, nil
			}
			return nil, nil
		})
		return Session{}, NotElevated, nil
	}
	return sess, Elevated, nil
}

// Grant starts or refreshes an elevation session. A fresh grant stamps both
// GrantedAt and ExpiresAt; refreshing an active session keeps GrantedAt and
// pushes ExpiresAt out by the full TTL. The returned bool is true when this
// call refreshed an existing session rather than starting one.
func (m *Manager) Grant(ctx context.Context, userID, reason string) (Session, bool, error) {
	now := m.Now()
	var refreshed bool
	sess, err := m.store.Update(ctx, userID, func(cur *Session) (*Session, error) {
		next := Session{
			UserID:    userID,
			Reason:    reason,
			GrantedAt: now,
			ExpiresAt: now.Add(m.ttl),
		}
		if cur != nil && cur.Active(now) {
			refreshed = true
			next.GrantedAt = cur.GrantedAt
			if reason == "" {
				next.Reason = cur.Reason
			}
		}
		return &next, nil
	})
	if err != nil {
		return Session{}, false, err
	}
	return *sess, refreshed, nil
}

// Refresh extends an active session by the full TTL without restamping
// GrantedAt. The expiry check runs inside the store's atomic update: a
// session that lapsed after the caller last looked fails with
// [ErrSessionLapsed] instead of being silently revived. An empty reason
// keeps the one recorded at grant time.
func (m *Manager) Refresh(ctx context.Context, userID, reason string) (Session, error) {
	now := m.Now()
	sess, err := m.store.Update(ctx, userID, func(cur *Session) (*Session, error) {
		if cur == nil || !cur.Active(now) {
			return nil, ErrSessionLapsed
		}
		next := *cur
		next.ExpiresAt = now.Add(m.ttl)
		if reason != "" {
			next.Reason = reason
		}
		return &next, nil
	})
	if err != nil {
		return Session{}, err
	}
	return *sess, nil
}

// Revoke ends the user's session. Revoking a user who is not elevated is a
// no-op.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	return m.store.Delete(ctx, userID)
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

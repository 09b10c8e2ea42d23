package elevation

import (
	"context"
	"sync"
	"time"
)

// Store persists elevation sessions keyed by user ID. Implementations must
// make Update an atomic read-modify-write with respect to other Update and
// Delete calls for the same user.
type Store interface {
	// Get returns the stored session for userID, expired or not. The second
	// return value is false when no record exists.
	Get(ctx context.Context, userID string) (Session, bool, error)

	// Update atomically reads the current session (nil when absent), passes
	// it to fn, and stores the result. A nil result deletes the record. The
	// stored (or deleted) session is returned.
	Update(ctx context.Context, userID string, fn func(cur *Session) (*Session, error)) (*Session, error)

	// Delete removes the record for userID. Deleting an absent record is
	// not an error.
	Delete(ctx context.Context, userID string) error
}

// MemoryStore is an in-process Store backed by a map. Expired records stay
// until deleted, swept, or overwritten; readers decide validity themselves.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok, nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, userID string, fn func(cur *Session) (*Session, error)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur *Session
	if s, ok := m.sessions[userID]; ok {
		cp := s
		cur = &cp
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		delete(m.sessions, userID)
		return nil, nil
	}
	m.sessions[userID] = *next
	cp := *next
	return &cp, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Sweep removes every record expired at the given instant and returns the
// sessions it dropped, so callers can emit expiry events for them.
func (m *MemoryStore) Sweep(now time.Time) []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []Session
	for uid, s := range m.sessions {
		if !s.Active(now) {
			expired = append(expired, s)
			delete(m.sessions, uid)
		}
	}
	return expired
}

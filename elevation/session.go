package elevation

import "time"

// State is the elevation state of a user.
type State int

const (
	// NotElevated is the default state: no session, or a lapsed one.
	NotElevated State = iota
	// Elevated means an unexpired session exists.
	Elevated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case NotElevated:
		return "not_elevated"
	case Elevated:
		return "elevated"
	default:
		return "unknown"
	}
}

// Session is one user's elevation grant. GrantedAt is preserved across
// refreshes; only ExpiresAt moves.
type Session struct {
	UserID    string
	Reason    string
	GrantedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the session is still valid at the given instant.
// The deadline itself is exclusive: a session checked exactly at ExpiresAt
// is already lapsed.
func (s Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

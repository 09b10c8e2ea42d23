package registry

import (
	"sort"

	"github.com/guildguard/guildguard/permission"
)

// Role is a named permission grouping within a guild. Position totally
// orders roles: a higher position means higher authority. Exactly one role
// per guild has IsBase set; it is created with the guild, cannot be
// deleted, and always sits at the lowest position.
type Role struct {
	ID          string
	GuildID     string
	Name        string
	Color       string
	Permissions permission.Set
	Position    int
	IsBase      bool
	Version     uint64
}

// Membership links a user to a guild and the roles they hold. Owner is a
// distinguished attribute, not a role: it bypasses hierarchy and
// escalation checks but not the destructive-elevation gate.
type Membership struct {
	GuildID string
	UserID  string
	RoleIDs []string
	IsOwner bool
	Version uint64
}

// HasRole reports whether the membership includes roleID.
func (m Membership) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Override is a per-channel, per-role allow/deny delta over the base
// permission union. Allow and Deny are always disjoint; a bit absent from
// both means "inherit". At most one row exists per (channel, role) pair,
// and a row cleared to all-inherit is deleted rather than stored.
type Override struct {
	ID        string
	GuildID   string
	ChannelID string
	RoleID    string
	Allow     permission.Set
	Deny      permission.Set
	Version   uint64
}

// View is a consistent point-in-time copy of one guild's permission data,
// scoped to an optional channel and the memberships requested from
// [Store.View]. Views are plain values: reading them needs no
// coordination, and they never change after construction.
type View struct {
	GuildID   string
	Roles     []Role     // ascending by position; Roles[0] is the base role
	Overrides []Override // overrides of the requested channel, if any

	members map[string]Membership
}

// Membership returns the requested membership for userID, if the user is a
// member of the guild.
func (v *View) Membership(userID string) (Membership, bool) {
	m, ok := v.members[userID]
	return m, ok
}

// Role returns the role with the given ID.
func (v *View) Role(roleID string) (Role, bool) {
	for _, r := range v.Roles {
		if r.ID == roleID {
			return r, true
		}
	}
	return Role{}, false
}

// BaseRole returns the guild's base role.
func (v *View) BaseRole() Role {
	return v.Roles[0]
}

// MemberRoles returns the roles held by m in ascending position order,
// always including the base role.
func (v *View) MemberRoles(m Membership) []Role {
	out := make([]Role, 0, len(m.RoleIDs)+1)
	for _, r := range v.Roles {
		if r.IsBase || m.HasRole(r.ID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// HighestPosition returns the position of the member's highest role, or
// the base role's position when the member holds no explicit roles. Owner
// authority is not expressed as a position; callers check
// [Membership.IsOwner] separately.
func (v *View) HighestPosition(m Membership) int {
	highest := v.BaseRole().Position
	for _, r := range v.Roles {
		if m.HasRole(r.ID) && r.Position > highest {
			highest = r.Position
		}
	}
	return highest
}

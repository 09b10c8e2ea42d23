package guildguard

import (
	"github.com/guildguard/guildguard/permission"
	"github.com/guildguard/guildguard/registry"
)

// ResolveView computes a member's effective permission set from a
// registry snapshot. It is a pure function: no I/O, no side effects, and
// identical inputs always produce identical output, so it is safe to call
// from arbitrarily many goroutines against the same view.
//
// With no channel context (a view taken without a channel, or a view whose
// override list is empty) the result is the guild-level union: the base
// role's permissions plus the permissions of every role the member holds.
//
// With channel overrides present, each override belonging to a role the
// member holds is applied in ascending position order: deny bits clear the
// running set, then allow bits re-set it. The highest-position role's
// override therefore wins on any bit it touches, and bits no override
// touches keep the base union's value. Overrides on roles the member does
// not hold are never consulted.
//
// An owner short-circuits to the full set before overrides apply; owner
// authority inside the guild is absolute.
func ResolveView(v *registry.View, m registry.Membership) permission.Set {
	if m.IsOwner {
		return permission.All
	}

	held := v.MemberRoles(m)
	var set permission.Set
	for _, r := range held {
		set = set.Union(r.Permissions)
	}

	if len(v.Overrides) == 0 {
		return set
	}

	byRole := make(map[string]registry.Override, len(v.Overrides))
	for _, o := range v.Overrides {
		byRole[o.RoleID] = o
	}
	for _, r := range held { // ascending position order
		o, ok := byRole[r.ID]
		if !ok {
			continue
		}
		set = set.Difference(o.Deny).Union(o.Allow)
	}
	return set
}

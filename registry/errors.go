package registry

import "errors"

var (
	// ErrNotFound is returned when a guild, role, member, or override does
	// not exist.
	ErrNotFound = errors.New("registry: not found")

	// ErrGuildExists is returned by CreateGuild for a duplicate guild ID.
	ErrGuildExists = errors.New("registry: guild already exists")

	// ErrVersionConflict is returned when a mutation's expected version no
	// longer matches the stored entity.
	ErrVersionConflict = errors.New("registry: version conflict")

	// ErrBaseRoleProtected is returned for mutations the base role does not
	// admit: deletion, renaming, or recoloring.
	ErrBaseRoleProtected = errors.New("registry: base role is protected")

	// ErrInvalidOrdering is returned by Reorder when the proposed order is
	// not a permutation of the guild's roles with the base role lowest.
	ErrInvalidOrdering = errors.New("registry: invalid role ordering")

	// ErrInvalidOverrideState is returned when an override's allow and deny
	// sets intersect.
	ErrInvalidOverrideState = errors.New("registry: override allow and deny overlap")

	// ErrRoleLimit is returned when creating a role would exceed the
	// per-guild role limit.
	ErrRoleLimit = errors.New("registry: guild role limit reached")
)

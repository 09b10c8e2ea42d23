package guildguard

import (
	"errors"
	"fmt"

	"github.com/guildguard/guildguard/permission"
	"github.com/guildguard/guildguard/registry"
)

var (
	// ErrNotFound is returned when a guild, role, member, or override does
	// not exist.
	ErrNotFound = registry.ErrNotFound
	// ErrGuildExists is returned when creating a guild under a taken ID.
	ErrGuildExists = registry.ErrGuildExists
	// ErrVersionConflict is returned when a pinned mutation lost a race to a
	// concurrent edit. Callers re-fetch, reapply, and retry.
	ErrVersionConflict = registry.ErrVersionConflict
	// ErrBaseRoleProtected is returned for mutations the base role does not
	// admit: deletion, renaming, recoloring, or direct assignment.
	ErrBaseRoleProtected = registry.ErrBaseRoleProtected
	// ErrInvalidOrdering is returned by ReorderRoles when the proposed order
	// is not a complete, unique ordering with the base role lowest.
	ErrInvalidOrdering = registry.ErrInvalidOrdering
	// ErrInvalidOverrideState is returned when an override marks a bit both
	// allow and deny.
	ErrInvalidOverrideState = registry.ErrInvalidOverrideState

	// ErrHierarchyViolation is returned when an actor's highest role does
	// not strictly outrank the role or member they are acting on.
	ErrHierarchyViolation = errors.New("hierarchy violation")
	// ErrEscalationDenied is returned when a mutation would grant bits the
	// actor does not hold, or a dangerous bit on the base role.
	ErrEscalationDenied = errors.New("escalation denied")
	// ErrPermissionDenied is returned when the actor's effective permission
	// set lacks a required capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotElevated is returned when a destructive action is attempted
	// without an active elevation session.
	ErrNotElevated = errors.New("not elevated")
	// ErrVerificationFailed is returned when the secondary verification
	// backing an elevation request is rejected.
	ErrVerificationFailed = errors.New("elevation verification failed")
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)

// Escalation rule identifiers carried by EscalationError.
const (
	// EscalationRuleGrantExceedsActor: the proposed set adds bits outside
	// the actor's own effective permissions.
	EscalationRuleGrantExceedsActor = "grant_exceeds_actor"
	// EscalationRuleBaseRoleCeiling: the proposed set puts a dangerous bit
	// on the base role. Absolute, owner included.
	EscalationRuleBaseRoleCeiling = "base_role_ceiling"
)

// EscalationError reports exactly which bits violated which rule, so the
// boundary layer can surface a specific reason instead of a blanket denial.
type EscalationError struct {
	Bits permission.Set
	Rule string
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("escalation denied (%s): %s", e.Rule, e.Bits.String())
}

// Unwrap lets errors.Is match ErrEscalationDenied.
func (e *EscalationError) Unwrap() error { return ErrEscalationDenied }

// HierarchyError reports the positions that failed the strict-ordering
// comparison.
type HierarchyError struct {
	ActorPosition  int
	TargetPosition int
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("hierarchy violation: actor position %d does not exceed target position %d",
		e.ActorPosition, e.TargetPosition)
}

// Unwrap lets errors.Is match ErrHierarchyViolation.
func (e *HierarchyError) Unwrap() error { return ErrHierarchyViolation }

// PermissionDeniedError reports the required bits the actor lacked.
type PermissionDeniedError struct {
	Missing permission.Set
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: missing %s", e.Missing.String())
}

// Unwrap lets errors.Is match ErrPermissionDenied.
func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

package guildguard

import "github.com/guildguard/guildguard/permission"

// ValidateRoleMutation enforces the escalation rules on a proposed role
// permission set. Two independent checks, deliberately not merged:
//
//  1. Newly added bits (proposed minus current) must be a subset of the
//     actor's own effective permissions. Owners skip this check. Bits the
//     role already holds and the proposal leaves in place are not
//     re-validated; editing a role never requires holding what it had
//     before the edit.
//  2. On the base role, dangerous bits are an absolute ceiling: they may
//     never appear in the proposed set, owner included.
//
// A violation is reported in full, never trimmed to a partial success.
func ValidateRoleMutation(actorEffective permission.Set, actorIsOwner bool, current, proposed permission.Set, roleIsBase bool) error {
	if roleIsBase {
		if forbidden := proposed.Intersect(permission.Dangerous); !forbidden.IsEmpty() {
			return &EscalationError{Bits: forbidden, Rule: EscalationRuleBaseRoleCeiling}
		}
	}

	if actorIsOwner {
		return nil
	}
	added := proposed.Difference(current)
	if exceeding := added.Difference(actorEffective); !exceeding.IsEmpty() {
		return &EscalationError{Bits: exceeding, Rule: EscalationRuleGrantExceedsActor}
	}
	return nil
}

// ValidateOverrideMutation applies the same cannot-grant-what-you-do-not-
// hold rule to bits newly moved into an override's allow set. The position
// gate (overrides only on roles strictly below the actor's highest) is
// checked separately by the engine alongside the other hierarchy rules.
func ValidateOverrideMutation(actorEffective permission.Set, actorIsOwner bool, currentAllow, proposedAllow permission.Set) error {
	if actorIsOwner {
		return nil
	}
	added := proposedAllow.Difference(currentAllow)
	if exceeding := added.Difference(actorEffective); !exceeding.IsEmpty() {
		return &EscalationError{Bits: exceeding, Rule: EscalationRuleGrantExceedsActor}
	}
	return nil
}

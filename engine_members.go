package guildguard

import (
	"context"
	"errors"

	"github.com/guildguard/guildguard/permission"
	"github.com/guildguard/guildguard/registry"
)

// Membership returns a member's current role assignments.
func (e *Engine) Membership(ctx context.Context, guildID, userID string) (registry.Membership, error) {
	if err := e.checkOpen(); err != nil {
		return registry.Membership{}, err
	}
	return e.store.Membership(guildID, userID)
}

// AssignMemberRole grants a role to a member. The actor needs
// MANAGE_ROLES, must strictly outrank both the role being assigned and the
// target member's highest role, and cannot assign the base role (it is
// held implicitly). Assigning an already-held role succeeds unchanged.
func (e *Engine) AssignMemberRole(ctx context.Context, guildID, actorID, targetID, roleID string, expectedVersion uint64) (registry.Membership, error) {
	return e.mutateMemberRole(ctx, auditActionRoleAssign, guildID, actorID, targetID, roleID, expectedVersion,
		func() (registry.Membership, error) {
			return e.store.AssignRole(guildID, targetID, roleID, expectedVersion)
		})
}

// RemoveMemberRole revokes a role from a member under the same gates as
// assignment. Revoking a role the member does not hold fails with
// ErrNotFound.
func (e *Engine) RemoveMemberRole(ctx context.Context, guildID, actorID, targetID, roleID string, expectedVersion uint64) (registry.Membership, error) {
	return e.mutateMemberRole(ctx, auditActionRoleUnassign, guildID, actorID, targetID, roleID, expectedVersion,
		func() (registry.Membership, error) {
			return e.store.UnassignRole(guildID, targetID, roleID, expectedVersion)
		})
}

func (e *Engine) mutateMemberRole(ctx context.Context, action, guildID, actorID, targetID, roleID string, expectedVersion uint64, commit func() (registry.Membership, error)) (registry.Membership, error) {
	if err := e.checkOpen(); err != nil {
		return registry.Membership{}, err
	}
	rec := auditRecord{
		action: action, actorID: actorID, guildID: guildID,
		targetType: targetTypeMember, targetID: targetID,
		metadata: map[string]string{"role_id": roleID},
	}

	v, actor, err := e.actorView(guildID, "", actorID, targetID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Membership{}, err
	}
	target, ok := v.Membership(targetID)
	if !ok {
		e.emitDenied(ctx, rec, ErrNotFound)
		return registry.Membership{}, ErrNotFound
	}
	role, ok := v.Role(roleID)
	if !ok {
		e.emitDenied(ctx, rec, ErrNotFound)
		return registry.Membership{}, ErrNotFound
	}
	if role.IsBase {
		e.emitDenied(ctx, rec, ErrBaseRoleProtected)
		return registry.Membership{}, ErrBaseRoleProtected
	}
	if err := e.requirePermission(v, actor, permission.ManageRoles); err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Membership{}, err
	}
	actorHighest := v.HighestPosition(actor)
	// The role itself must be below the actor; so must the target member.
	if err := requireRank(actorHighest, actor.IsOwner, role.Position); err != nil {
		e.metricInc(MetricHierarchyDenied)
		e.emitDenied(ctx, rec, err)
		return registry.Membership{}, err
	}
	if target.IsOwner && !actor.IsOwner {
		err := &HierarchyError{ActorPosition: actorHighest, TargetPosition: v.HighestPosition(target)}
		e.metricInc(MetricHierarchyDenied)
		e.emitDenied(ctx, rec, err)
		return registry.Membership{}, err
	}
	if actorID != targetID && !target.IsOwner {
		if err := requireRank(actorHighest, actor.IsOwner, v.HighestPosition(target)); err != nil {
			e.metricInc(MetricHierarchyDenied)
			e.emitDenied(ctx, rec, err)
			return registry.Membership{}, err
		}
	}

	before := target
	after, err := commit()
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			e.metricInc(MetricVersionConflict)
		}
		e.emitDenied(ctx, rec, err)
		return registry.Membership{}, err
	}

	if action == auditActionRoleAssign {
		e.metricInc(MetricRoleAssigned)
	} else {
		e.metricInc(MetricRoleUnassigned)
	}
	rec.before = before.RoleIDs
	rec.after = after.RoleIDs
	e.emitAudit(ctx, rec)
	return after, nil
}

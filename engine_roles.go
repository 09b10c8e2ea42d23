package guildguard

import (
	"context"
	"errors"

	"github.com/guildguard/guildguard/permission"
	"github.com/guildguard/guildguard/registry"
)

// Roles returns a guild's roles in ascending position order.
func (e *Engine) Roles(ctx context.Context, guildID string) ([]registry.Role, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.store.Roles(guildID)
}

// AssignableRoles returns the roles the actor may offer for assignment:
// every role strictly below the actor's highest position, or all non-base
// roles for an owner. UI layers use this to filter pickers; the mutation
// paths re-check regardless.
func (e *Engine) AssignableRoles(ctx context.Context, guildID, actorID string) ([]registry.Role, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	v, actor, err := e.actorView(guildID, "", actorID)
	if err != nil {
		return nil, err
	}
	highest := v.HighestPosition(actor)
	out := make([]registry.Role, 0, len(v.Roles))
	for _, r := range v.Roles {
		if r.IsBase {
			continue
		}
		if actor.IsOwner || r.Position < highest {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateRole creates a role just above the base role. The actor needs
// MANAGE_ROLES, and every bit granted to the new role must be within the
// actor's own effective permissions unless they are owner. A rejected
// creation leaves no role behind.
func (e *Engine) CreateRole(ctx context.Context, guildID, actorID, name, color string, perms permission.Set) (registry.Role, error) {
	if err := e.checkOpen(); err != nil {
		return registry.Role{}, err
	}
	rec := auditRecord{
		action: auditActionRoleCreate, actorID: actorID, guildID: guildID,
		targetType: targetTypeRole,
		metadata:   map[string]string{"name": name},
	}

	v, actor, err := e.actorView(guildID, "", actorID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Role{}, err
	}
	if err := e.requirePermission(v, actor, permission.ManageRoles); err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Role{}, err
	}
	if err := ValidateRoleMutation(e.resolveTimed(v, actor), actor.IsOwner, 0, perms.Normalize(), false); err != nil {
		e.metricInc(MetricEscalationDenied)
		e.emitDenied(ctx, rec, err)
		return registry.Role{}, err
	}

	role, err := e.store.InsertRole(guildID, name, color, perms.Normalize())
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Role{}, err
	}

	e.metricInc(MetricRoleCreated)
	rec.targetID = role.ID
	rec.after = role
	e.emitAudit(ctx, rec)
	return role, nil
}

// UpdateRole applies a partial edit to a role. The actor needs
// MANAGE_ROLES and must strictly outrank the role; bits newly granted must
// be within the actor's effective permissions, and the base role rejects
// renames, recolors, and any dangerous bit regardless of who asks.
func (e *Engine) UpdateRole(ctx context.Context, guildID, actorID, roleID string, patch RolePatch) (registry.Role, error) {
	if err := e.checkOpen(); err != nil {
		return registry.Role{}, err
	}
	rec := auditRecord{
		action: auditActionRoleUpdate, actorID: actorID, guildID: guildID,
		targetType: targetTypeRole, targetID: roleID,
	}

	v, actor, err := e.actorView(guildID, "", actorID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Role{}, err
	}
	role, ok := v.Role(roleID)
	if !ok {
		e.emitDenied(ctx, rec, ErrNotFound)
		return registry.Role{}, ErrNotFound
	}
	if err := e.requirePermission(v, actor, permission.ManageRoles); err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Role{}, err
	}
	// The base role sits below everyone, so the rank check only guards
	// explicit roles.
	if !role.IsBase {
		if err := requireRank(v.HighestPosition(actor), actor.IsOwner, role.Position); err != nil {
			e.metricInc(MetricHierarchyDenied)
			e.emitDenied(ctx, rec, err)
			return registry.Role{}, err
		}
	}
	if role.IsBase && (patch.Name != nil || patch.Color != nil) {
		e.emitDenied(ctx, rec, ErrBaseRoleProtected)
		return registry.Role{}, ErrBaseRoleProtected
	}
	if patch.Permissions != nil {
		proposed := patch.Permissions.Normalize()
		if err := ValidateRoleMutation(e.resolveTimed(v, actor), actor.IsOwner, role.Permissions, proposed, role.IsBase); err != nil {
			e.metricInc(MetricEscalationDenied)
			e.emitDenied(ctx, rec, err)
			return registry.Role{}, err
		}
	}

	before, after, err := e.store.UpdateRole(roleID, patch.ExpectedVersion, func(r *registry.Role) error {
		if patch.Name != nil {
			r.Name = *patch.Name
		}
		if patch.Color != nil {
			r.Color = *patch.Color
		}
		if patch.Permissions != nil {
			r.Permissions = patch.Permissions.Normalize()
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			e.metricInc(MetricVersionConflict)
		}
		e.emitDenied(ctx, rec, err)
		return registry.Role{}, err
	}

	e.metricInc(MetricRoleUpdated)
	rec.before = before
	rec.after = after
	e.emitAudit(ctx, rec)
	return after, nil
}

// DeleteRole removes a non-base role, cascading its overrides and member
// assignments. Requires MANAGE_ROLES and strict rank over the role.
func (e *Engine) DeleteRole(ctx context.Context, guildID, actorID, roleID string, expectedVersion uint64) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	rec := auditRecord{
		action: auditActionRoleDelete, actorID: actorID, guildID: guildID,
		targetType: targetTypeRole, targetID: roleID,
	}

	v, actor, err := e.actorView(guildID, "", actorID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}
	role, ok := v.Role(roleID)
	if !ok {
		e.emitDenied(ctx, rec, ErrNotFound)
		return ErrNotFound
	}
	if role.IsBase {
		e.emitDenied(ctx, rec, ErrBaseRoleProtected)
		return ErrBaseRoleProtected
	}
	if err := e.requirePermission(v, actor, permission.ManageRoles); err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}
	if err := requireRank(v.HighestPosition(actor), actor.IsOwner, role.Position); err != nil {
		e.metricInc(MetricHierarchyDenied)
		e.emitDenied(ctx, rec, err)
		return err
	}

	removed, err := e.store.DeleteRole(roleID, expectedVersion)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			e.metricInc(MetricVersionConflict)
		}
		e.emitDenied(ctx, rec, err)
		return err
	}

	e.metricInc(MetricRoleDeleted)
	rec.before = removed
	e.emitAudit(ctx, rec)
	return nil
}

// ReorderRoles replaces the guild's role ordering in one batch, lowest to
// highest. The whole ordering is validated before anything is committed;
// non-owners may only move roles strictly below their own highest
// position, in both the old and the new arrangement.
func (e *Engine) ReorderRoles(ctx context.Context, guildID, actorID string, order []string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	rec := auditRecord{
		action: auditActionRoleReorder, actorID: actorID, guildID: guildID,
		targetType: targetTypeGuild, targetID: guildID,
	}

	v, actor, err := e.actorView(guildID, "", actorID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}
	if err := e.requirePermission(v, actor, permission.ManageRoles); err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}
	if !actor.IsOwner {
		highest := v.HighestPosition(actor)
		for newPos, id := range order {
			role, ok := v.Role(id)
			if !ok {
				continue // the store rejects unknown IDs with full detail
			}
			if role.Position == newPos {
				continue
			}
			if role.Position >= highest || newPos >= highest {
				err := &HierarchyError{ActorPosition: highest, TargetPosition: max(role.Position, newPos)}
				e.metricInc(MetricHierarchyDenied)
				e.emitDenied(ctx, rec, err)
				return err
			}
		}
	}

	if err := e.store.Reorder(guildID, order); err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}

	e.metricInc(MetricRolesReordered)
	rec.after = order
	e.emitAudit(ctx, rec)
	return nil
}

package guildguard

import (
	"context"
	"errors"

	"github.com/guildguard/guildguard/permission"
	"github.com/guildguard/guildguard/registry"
)

// Overrides returns a channel's override rows.
func (e *Engine) Overrides(ctx context.Context, guildID, channelID string) ([]registry.Override, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.store.Overrides(guildID, channelID)
}

// SetOverride upserts the (channel, role) allow/deny override. The actor
// needs MANAGE_CHANNELS in that channel, may only target roles strictly
// below their own highest position (owner excepted), and may only move
// bits into allow that they effectively hold there. Allow and deny must be
// disjoint; clearing both deletes the row.
func (e *Engine) SetOverride(ctx context.Context, guildID, channelID, actorID, roleID string, allow, deny permission.Set, expectedVersion uint64) (registry.Override, error) {
	if err := e.checkOpen(); err != nil {
		return registry.Override{}, err
	}
	rec := auditRecord{
		action: auditActionOverrideSet, actorID: actorID, guildID: guildID,
		targetType: targetTypeOverride, targetID: roleID,
		metadata: map[string]string{"channel_id": channelID},
	}

	allow, deny = allow.Normalize(), deny.Normalize()
	if !allow.Intersect(deny).IsEmpty() {
		e.emitDenied(ctx, rec, ErrInvalidOverrideState)
		return registry.Override{}, ErrInvalidOverrideState
	}

	v, actor, err := e.actorView(guildID, channelID, actorID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Override{}, err
	}
	role, ok := v.Role(roleID)
	if !ok {
		e.emitDenied(ctx, rec, ErrNotFound)
		return registry.Override{}, ErrNotFound
	}
	if err := e.requirePermission(v, actor, permission.ManageChannels); err != nil {
		e.emitDenied(ctx, rec, err)
		return registry.Override{}, err
	}
	if err := requireRank(v.HighestPosition(actor), actor.IsOwner, role.Position); err != nil {
		e.metricInc(MetricHierarchyDenied)
		e.emitDenied(ctx, rec, err)
		return registry.Override{}, err
	}

	var currentAllow permission.Set
	var before any
	for _, o := range v.Overrides {
		if o.RoleID == roleID {
			currentAllow = o.Allow
			before = o
			break
		}
	}
	if err := ValidateOverrideMutation(e.resolveTimed(v, actor), actor.IsOwner, currentAllow, allow); err != nil {
		e.metricInc(MetricEscalationDenied)
		e.emitDenied(ctx, rec, err)
		return registry.Override{}, err
	}

	row, err := e.store.SetOverride(guildID, channelID, roleID, allow, deny, expectedVersion)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			e.metricInc(MetricVersionConflict)
		}
		e.emitDenied(ctx, rec, err)
		return registry.Override{}, err
	}

	e.metricInc(MetricOverrideSet)
	rec.before = before
	if row.ID != "" {
		rec.after = row
	}
	e.emitAudit(ctx, rec)
	return row, nil
}

// ClearOverride deletes the (channel, role) override row outright, under
// the same channel-management and rank gates as SetOverride.
func (e *Engine) ClearOverride(ctx context.Context, guildID, channelID, actorID, roleID string, expectedVersion uint64) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	rec := auditRecord{
		action: auditActionOverrideClear, actorID: actorID, guildID: guildID,
		targetType: targetTypeOverride, targetID: roleID,
		metadata: map[string]string{"channel_id": channelID},
	}

	v, actor, err := e.actorView(guildID, channelID, actorID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}
	role, ok := v.Role(roleID)
	if !ok {
		e.emitDenied(ctx, rec, ErrNotFound)
		return ErrNotFound
	}
	if err := e.requirePermission(v, actor, permission.ManageChannels); err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}
	if err := requireRank(v.HighestPosition(actor), actor.IsOwner, role.Position); err != nil {
		e.metricInc(MetricHierarchyDenied)
		e.emitDenied(ctx, rec, err)
		return err
	}

	removed, err := e.store.DeleteOverride(guildID, channelID, roleID, expectedVersion)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			e.metricInc(MetricVersionConflict)
		}
		e.emitDenied(ctx, rec, err)
		return err
	}

	e.metricInc(MetricOverrideCleared)
	rec.before = removed
	e.emitAudit(ctx, rec)
	return nil
}

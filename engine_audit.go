package guildguard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditActionGuildCreate      = "guild.create"
	auditActionMemberAdd        = "member.add"
	auditActionMemberRemove     = "member.remove"
	auditActionRoleCreate       = "role.create"
	auditActionRoleUpdate       = "role.update"
	auditActionRoleDelete       = "role.delete"
	auditActionRoleReorder      = "role.reorder"
	auditActionRoleAssign       = "member.role_assign"
	auditActionRoleUnassign     = "member.role_unassign"
	auditActionOverrideSet      = "override.set"
	auditActionOverrideClear    = "override.clear"
	auditActionElevationGrant   = "elevation.grant"
	auditActionElevationRefresh = "elevation.refresh"
	auditActionElevationRevoke  = "elevation.revoke"
	auditActionElevationExpire  = "elevation.expire"
	auditActionDestructiveCheck = "check.destructive"
)

const (
	targetTypeGuild     = "guild"
	targetTypeRole      = "role"
	targetTypeMember    = "member"
	targetTypeOverride  = "override"
	targetTypeElevation = "elevation"
)

func denialReason(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGuildExists):
		return "guild_exists"
	case errors.Is(err, ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, ErrBaseRoleProtected):
		return "base_role_protected"
	case errors.Is(err, ErrInvalidOrdering):
		return "invalid_ordering"
	case errors.Is(err, ErrInvalidOverrideState):
		return "invalid_override_state"
	case errors.Is(err, ErrHierarchyViolation):
		return "hierarchy_violation"
	case errors.Is(err, ErrEscalationDenied):
		return "escalation_denied"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotElevated):
		return "not_elevated"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, ErrEngineClosed):
		return "engine_closed"
	default:
		return "internal_error"
	}
}

// auditRecord gathers the fields the emit helpers share.
type auditRecord struct {
	action     string
	actorID    string
	guildID    string
	targetType string
	targetID   string
	before     any
	after      any
	metadata   map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	e.emit(ctx, rec, nil)
}

func (e *Engine) emitDenied(ctx context.Context, rec auditRecord, err error) {
	e.emit(ctx, rec, err)
}

func (e *Engine) emit(ctx context.Context, rec auditRecord, denial error) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Action:     rec.action,
		ActorID:    rec.actorID,
		GuildID:    rec.guildID,
		TargetType: rec.targetType,
		TargetID:   rec.targetID,
		Before:     rec.before,
		After:      rec.after,
		IP:         clientIPFromContext(ctx),
		Metadata:   rec.metadata,
	}
	if reason := reasonFromContext(ctx); reason != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["reason"] = reason
	}
	if denial != nil {
		event.Denied = true
		event.Reason = denialReason(denial)
	}

	e.audit.Emit(ctx, event)
}

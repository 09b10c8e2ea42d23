package guildguard

import (
	"context"

	"github.com/guildguard/guildguard/permission"
)

// Resolve computes a user's effective permission set in a guild,
// optionally scoped to a channel (empty channelID means guild scope). This
// is a read against a consistent snapshot; it never mutates anything.
func (e *Engine) Resolve(ctx context.Context, guildID, channelID, userID string) (permission.Set, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	v, err := e.store.View(guildID, channelID, userID)
	if err != nil {
		return 0, err
	}
	m, ok := v.Membership(userID)
	if !ok {
		return 0, ErrNotFound
	}
	return e.resolveTimed(v, m), nil
}

// Check is the single choke point callers hit before performing a guarded
// action: it resolves the user in context and verifies every required bit
// is held. A denial is a PermissionDeniedError naming the missing bits.
func (e *Engine) Check(ctx context.Context, guildID, channelID, userID string, required permission.Set) error {
	effective, err := e.Resolve(ctx, guildID, channelID, userID)
	if err != nil {
		return err
	}
	if missing := required.Difference(effective); !missing.IsEmpty() {
		e.metricInc(MetricCheckDenied)
		return &PermissionDeniedError{Missing: missing}
	}
	e.metricInc(MetricCheckAllowed)
	return nil
}

// CheckDestructive layers the elevation gate on top of Check for
// destructive administrative actions (ban, suspend, hard delete). The
// permission bits alone are never sufficient: the user must also hold an
// unexpired elevation session, owner included. Expiry is evaluated here,
// at decision time, so a lapsed session is rejected even if no sweep has
// run.
func (e *Engine) CheckDestructive(ctx context.Context, guildID, channelID, userID string, required permission.Set) error {
	if err := e.Check(ctx, guildID, channelID, userID, required); err != nil {
		return err
	}
	if err := e.requireElevated(ctx, userID); err != nil {
		e.emitDenied(ctx, auditRecord{
			action: auditActionDestructiveCheck, actorID: userID, guildID: guildID,
			targetType: targetTypeElevation, targetID: userID,
			metadata: map[string]string{"required": required.String()},
		}, err)
		return err
	}
	return nil
}

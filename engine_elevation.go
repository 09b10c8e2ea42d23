package guildguard

import (
	"context"
	"errors"
	"time"

	"github.com/guildguard/guildguard/elevation"
)

// Elevate starts or refreshes the user's elevation session. A fresh grant
// requires the proof to pass secondary verification; refreshing a session
// that has not yet expired skips verification and simply extends expiry. A
// lapsed session is a fresh grant again, verification included. Elevation
// is strictly self-service: a user can only elevate their own session.
func (e *Engine) Elevate(ctx context.Context, userID, proof string) (ElevationStatus, error) {
	if err := e.checkOpen(); err != nil {
		return ElevationStatus{}, err
	}
	rec := auditRecord{
		action: auditActionElevationGrant, actorID: userID,
		targetType: targetTypeElevation, targetID: userID,
	}

	_, state, err := e.elevations.Status(ctx, userID)
	if err != nil {
		e.emitDenied(ctx, rec, err)
		return ElevationStatus{}, err
	}

	reason := reasonFromContext(ctx)
	var (
		sess      elevation.Session
		refreshed bool
	)
	if state == elevation.Elevated {
		// Refresh re-checks expiry atomically: a session that lapsed
		// after the read above fails here and takes the verified path.
		sess, err = e.elevations.Refresh(ctx, userID, reason)
		switch {
		case err == nil:
			refreshed = true
		case errors.Is(err, elevation.ErrSessionLapsed):
		default:
			e.emitDenied(ctx, rec, err)
			return ElevationStatus{}, err
		}
	}
	if !refreshed {
		if err := e.verifier.Verify(ctx, userID, proof); err != nil {
			e.metricInc(MetricElevationVerifyFailed)
			e.emitDenied(ctx, rec, ErrVerificationFailed)
			return ElevationStatus{}, errors.Join(ErrVerificationFailed, err)
		}
		sess, _, err = e.elevations.Grant(ctx, userID, reason)
		if err != nil {
			e.emitDenied(ctx, rec, err)
			return ElevationStatus{}, err
		}
	}

	if refreshed {
		e.metricInc(MetricElevationRefreshed)
		rec.action = auditActionElevationRefresh
	} else {
		e.metricInc(MetricElevationGranted)
	}
	status := e.buildStatus(sess)
	if e.receipts != nil {
		if receipt, rerr := e.receipts.Issue(sess.UserID, sess.Reason, sess.GrantedAt, sess.ExpiresAt); rerr == nil {
			status.Receipt = receipt
		}
	}
	rec.after = map[string]string{
		"granted_at": sess.GrantedAt.UTC().Format(time.RFC3339),
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
	}
	e.emitAudit(ctx, rec)
	return status, nil
}

// Deelevate ends the user's own elevation session. It is self-service
// only; there is no path for one admin to force-expire another's session.
// De-elevating while not elevated is a no-op.
func (e *Engine) Deelevate(ctx context.Context, userID string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.elevations.Revoke(ctx, userID); err != nil {
		return err
	}
	e.metricInc(MetricElevationRevoked)
	e.emitAudit(ctx, auditRecord{
		action: auditActionElevationRevoke, actorID: userID,
		targetType: targetTypeElevation, targetID: userID,
	})
	return nil
}

// ElevationStatus reports the user's current state. The remaining time is
// derived from the stored expiry at read time, so it can never drift from
// the security decision.
func (e *Engine) ElevationStatus(ctx context.Context, userID string) (ElevationStatus, error) {
	if err := e.checkOpen(); err != nil {
		return ElevationStatus{}, err
	}
	sess, state, err := e.elevations.Status(ctx, userID)
	if err != nil {
		return ElevationStatus{}, err
	}
	if state != elevation.Elevated {
		return ElevationStatus{State: elevation.NotElevated}, nil
	}
	return e.buildStatus(sess), nil
}

// buildStatus never mints a receipt; receipts exist on grant responses
// only, so status reads stay signature-free.
func (e *Engine) buildStatus(sess elevation.Session) ElevationStatus {
	return ElevationStatus{
		State:     elevation.Elevated,
		GrantedAt: sess.GrantedAt,
		ExpiresAt: sess.ExpiresAt,
		Remaining: sess.ExpiresAt.Sub(e.elevations.Now()),
	}
}

// VerifyReceipt checks a signed elevation receipt issued by this engine
// and returns the user it certifies. Only available when receipts are
// enabled.
func (e *Engine) VerifyReceipt(receipt string) (string, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}
	if e.receipts == nil {
		return "", errors.New("receipts not enabled")
	}
	claims, err := e.receipts.Parse(receipt)
	if err != nil {
		return "", err
	}
	return claims.UID, nil
}

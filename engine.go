package guildguard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guildguard/guildguard/elevation"
	"github.com/guildguard/guildguard/permission"
	"github.com/guildguard/guildguard/registry"
	"github.com/guildguard/guildguard/token"
)

// Engine is the permission resolution and elevation engine. Construct it
// through the Builder; the zero value is not usable. All methods are safe
// for concurrent use.
type Engine struct {
	config     Config
	store      *registry.Store
	elevations *elevation.Manager
	verifier   Verifier
	receipts   *token.Issuer
	audit      *auditDispatcher
	metrics    *Metrics

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Close stops the background sweeper (if running) and flushes the audit
// dispatcher. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.closed.CompareAndSwap(false, true) {
		close(e.done)
		e.wg.Wait()
		if e.audit != nil {
			e.audit.Close()
		}
	}
}

// AuditDropped reports how many audit events were discarded on a full
// buffer since the engine started.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) checkOpen() error {
	if e == nil || e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) startSweeper(store *elevation.MemoryStore, interval time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, sess := range store.Sweep(e.elevations.Now()) {
					e.metricInc(MetricElevationExpired)
					e.emitAudit(context.Background(), auditRecord{
						action:     auditActionElevationExpire,
						actorID:    sess.UserID,
						targetType: targetTypeElevation,
						targetID:   sess.UserID,
					})
				}
			case <-e.done:
				return
			}
		}
	}()
}

/* ==================== guild lifecycle ==================== */

// CreateGuild registers a guild, enrolls ownerID as its owner, and seeds
// the base role with the safe member defaults. With SeedDefaultRoles set,
// Moderator and Officer preset roles are created above it.
func (e *Engine) CreateGuild(ctx context.Context, guildID, ownerID string) (registry.Role, error) {
	if err := e.checkOpen(); err != nil {
		return registry.Role{}, err
	}

	base, err := e.store.CreateGuild(guildID, ownerID, registry.Role{
		Name:        "@everyone",
		Permissions: permission.EveryoneDefault,
	})
	if err != nil {
		e.emitDenied(ctx, auditRecord{
			action: auditActionGuildCreate, actorID: ownerID, guildID: guildID,
			targetType: targetTypeGuild, targetID: guildID,
		}, err)
		return registry.Role{}, err
	}

	if e.config.Guild.SeedDefaultRoles {
		// Each insert lands just above base and shifts earlier inserts
		// up, so creating Officer first leaves it on top.
		if _, err := e.store.InsertRole(guildID, "Officer", "", permission.OfficerDefault); err != nil {
			return registry.Role{}, err
		}
		if _, err := e.store.InsertRole(guildID, "Moderator", "", permission.ModeratorDefault); err != nil {
			return registry.Role{}, err
		}
	}

	e.emitAudit(ctx, auditRecord{
		action: auditActionGuildCreate, actorID: ownerID, guildID: guildID,
		targetType: targetTypeGuild, targetID: guildID, after: base,
	})
	return base, nil
}

// AddMember enrolls a user in a guild with no explicit roles. Enrolling an
// existing member is a no-op.
func (e *Engine) AddMember(ctx context.Context, guildID, userID string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.store.AddMember(guildID, userID); err != nil {
		e.emitDenied(ctx, auditRecord{
			action: auditActionMemberAdd, guildID: guildID,
			targetType: targetTypeMember, targetID: userID,
		}, err)
		return err
	}
	e.emitAudit(ctx, auditRecord{
		action: auditActionMemberAdd, guildID: guildID,
		targetType: targetTypeMember, targetID: userID,
	})
	return nil
}

// RemoveMember drops a user's membership along with their role
// assignments. Removing an actor other than yourself is gated on
// KICK_MEMBERS, strict hierarchy over the target, and an active elevation
// session; leaving (actorID == userID) is always allowed.
func (e *Engine) RemoveMember(ctx context.Context, guildID, actorID, userID string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	rec := auditRecord{
		action: auditActionMemberRemove, actorID: actorID, guildID: guildID,
		targetType: targetTypeMember, targetID: userID,
	}

	if actorID != userID {
		v, actor, err := e.actorView(guildID, "", actorID, userID)
		if err != nil {
			e.emitDenied(ctx, rec, err)
			return err
		}
		target, ok := v.Membership(userID)
		if !ok {
			e.emitDenied(ctx, rec, ErrNotFound)
			return ErrNotFound
		}
		if err := e.requirePermission(v, actor, permission.KickMembers); err != nil {
			e.emitDenied(ctx, rec, err)
			return err
		}
		if !target.IsOwner {
			if err := requireRank(v.HighestPosition(actor), actor.IsOwner, v.HighestPosition(target)); err != nil {
				e.metricInc(MetricHierarchyDenied)
				e.emitDenied(ctx, rec, err)
				return err
			}
		} else if !actor.IsOwner {
			err := &HierarchyError{ActorPosition: v.HighestPosition(actor), TargetPosition: v.HighestPosition(target)}
			e.metricInc(MetricHierarchyDenied)
			e.emitDenied(ctx, rec, err)
			return err
		}
		if err := e.requireElevated(ctx, actorID); err != nil {
			e.emitDenied(ctx, rec, err)
			return err
		}
	}

	if err := e.store.RemoveMember(guildID, userID); err != nil {
		e.emitDenied(ctx, rec, err)
		return err
	}
	e.emitAudit(ctx, rec)
	return nil
}

/* ==================== shared gates ==================== */

// actorView snapshots the guild (optionally channel-scoped) and loads the
// actor's membership, which every gated mutation needs first.
func (e *Engine) actorView(guildID, channelID, actorID string, extraUsers ...string) (*registry.View, registry.Membership, error) {
	users := append([]string{actorID}, extraUsers...)
	v, err := e.store.View(guildID, channelID, users...)
	if err != nil {
		return nil, registry.Membership{}, err
	}
	actor, ok := v.Membership(actorID)
	if !ok {
		return nil, registry.Membership{}, ErrNotFound
	}
	return v, actor, nil
}

// requirePermission resolves the actor against the view and checks the
// required bits, returning a PermissionDeniedError naming what is missing.
func (e *Engine) requirePermission(v *registry.View, actor registry.Membership, required permission.Set) error {
	effective := e.resolveTimed(v, actor)
	if missing := required.Difference(effective); !missing.IsEmpty() {
		return &PermissionDeniedError{Missing: missing}
	}
	return nil
}

func (e *Engine) resolveTimed(v *registry.View, m registry.Membership) permission.Set {
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricResolveLatency, time.Since(start))
		}()
	}
	return ResolveView(v, m)
}

// requireElevated gates destructive actions on an active elevation
// session. Expiry is compared at call time; a stale session can never
// authorize.
func (e *Engine) requireElevated(ctx context.Context, userID string) error {
	_, state, err := e.elevations.Status(ctx, userID)
	if err != nil {
		return err
	}
	if state != elevation.Elevated {
		e.metricInc(MetricDestructiveDenied)
		return ErrNotElevated
	}
	return nil
}

package guildguard

import (
	"context"
	"errors"
	"testing"

	"github.com/guildguard/guildguard/permission"
)

func TestCreateRoleEscalationLeavesNoRole(t *testing.T) {
	f := newTestEngine(t)
	f.seedGuild(t)
	ctx := context.Background()

	// mod holds MANAGE_ROLES but not BAN_MEMBERS.
	before, err := f.engine.Roles(ctx, "g1")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	_, err = f.engine.CreateRole(ctx, "g1", "mod", "banhammer", "", permission.BanMembers)
	if !errors.Is(err, ErrEscalationDenied) {
		t.Fatalf("got %v, want ErrEscalationDenied", err)
	}
	after, err := f.engine.Roles(ctx, "g1")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("denied creation left a role behind: %d roles, want %d", len(after), len(before))
	}

	f.engine.Close()
	var denied bool
	for _, ev := range f.sink.all() {
		if ev.Action == auditActionRoleCreate && ev.Metadata["name"] == "banhammer" {
			if !ev.Denied || ev.Reason == "" {
				t.Fatalf("denial audit event not marked denied: %+v", ev)
			}
			denied = true
		}
	}
	if !denied {
		t.Fatal("no role.create denial audit event emitted")
	}
}

func TestCreateRoleRequiresManageRoles(t *testing.T) {
	f := newTestEngine(t)
	f.seedGuild(t)

	_, err := f.engine.CreateRole(context.Background(), "g1", "alice", "helpers", "", 0)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
	var pd *PermissionDeniedError
	if !errors.As(err, &pd) {
		t.Fatalf("error %v is not a *PermissionDeniedError", err)
	}
	if !pd.Missing.Has(permission.ManageRoles) {
		t.Fatalf("missing bits %s do not include MANAGE_ROLES", pd.Missing)
	}
}

func TestUpdateRoleVersionConflict(t *testing.T) {
	f := newTestEngine(t)
	mod := f.seedGuild(t)
	ctx := context.Background()

	name1 := "first"
	if _, err := f.engine.UpdateRole(ctx, "g1", "owner", mod.ID, RolePatch{
		Name: &name1, ExpectedVersion: mod.Version,
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// A second editor still holding the original version loses the race.
	name2 := "second"
	_, err := f.engine.UpdateRole(ctx, "g1", "owner", mod.ID, RolePatch{
		Name: &name2, ExpectedVersion: mod.Version,
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("got %v, want ErrVersionConflict", err)
	}

	if f.engine.MetricsSnapshot().Counters[MetricVersionConflict] == 0 {
		t.Fatal("MetricVersionConflict not incremented")
	}
}

func TestUpdateRoleRankGate(t *testing.T) {
	f := newTestEngine(t)
	f.seedGuild(t)
	ctx := context.Background()

	// A second role at the same position authority as mod's highest.
	peer, err := f.engine.CreateRole(ctx, "g1", "owner", "peer", "", 0)
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	// peer is now position 1 and moderator shifted to 2, so mod outranks
	// it; reorder to put peer on top.
	roles, err := f.engine.Roles(ctx, "g1")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	order := []string{roles[0].ID}
	for _, r := range roles[1:] {
		if r.ID != peer.ID {
			order = append(order, r.ID)
		}
	}
	order = append(order, peer.ID)
	if err := f.engine.ReorderRoles(ctx, "g1", "owner", order); err != nil {
		t.Fatalf("ReorderRoles: %v", err)
	}

	name := "renamed"
	_, err = f.engine.UpdateRole(ctx, "g1", "mod", peer.ID, RolePatch{Name: &name})
	if !errors.Is(err, ErrHierarchyViolation) {
		t.Fatalf("edit of a higher role: got %v, want ErrHierarchyViolation", err)
	}
}

func TestUpdateBaseRoleProtections(t *testing.T) {
	f := newTestEngine(t)
	f.seedGuild(t)
	ctx := context.Background()

	roles, err := f.engine.Roles(ctx, "g1")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	base := roles[0]

	name := "@anyone"
	if _, err := f.engine.UpdateRole(ctx, "g1", "owner", base.ID, RolePatch{Name: &name}); !errors.Is(err, ErrBaseRoleProtected) {
		t.Fatalf("base rename: got %v, want ErrBaseRoleProtected", err)
	}

	// Dangerous bits on the base role are out even for the owner.
	perms := base.Permissions | permission.KickMembers
	if _, err := f.engine.UpdateRole(ctx, "g1", "owner", base.ID, RolePatch{Permissions: &perms}); !errors.Is(err, ErrEscalationDenied) {
		t.Fatalf("dangerous base grant: got %v, want ErrEscalationDenied", err)
	}

	// Safe bits are editable.
	perms = base.Permissions | permission.ViewChannel
	updated, err := f.engine.UpdateRole(ctx, "g1", "owner", base.ID, RolePatch{Permissions: &perms})
	if err != nil {
		t.Fatalf("safe base edit: %v", err)
	}
	if !updated.Permissions.Has(permission.ViewChannel) {
		t.Fatalf("base permissions after edit: %s", updated.Permissions)
	}
}

func TestDeleteRoleGates(t *testing.T) {
	f := newTestEngine(t)
	mod := f.seedGuild(t)
	ctx := context.Background()

	roles, err := f.engine.Roles(ctx, "g1")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if err := f.engine.DeleteRole(ctx, "g1", "owner", roles[0].ID, 0); !errors.Is(err, ErrBaseRoleProtected) {
		t.Fatalf("base delete: got %v, want ErrBaseRoleProtected", err)
	}

	// mod cannot delete their own highest role; equal rank is not enough.
	if err := f.engine.DeleteRole(ctx, "g1", "mod", mod.ID, 0); !errors.Is(err, ErrHierarchyViolation) {
		t.Fatalf("self-rank delete: got %v, want ErrHierarchyViolation", err)
	}

	if err := f.engine.DeleteRole(ctx, "g1", "owner", mod.ID, 0); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	// Cascade: mod no longer holds the role.
	m, err := f.engine.Membership(ctx, "g1", "mod")
	if err != nil {
		t.Fatalf("Membership: %v", err)
	}
	if len(m.RoleIDs) != 0 {
		t.Fatalf("deleted role still assigned: %v", m.RoleIDs)
	}
}

func TestReorderRolesHierarchyGate(t *testing.T) {
	f := newTestEngine(t)
	mod := f.seedGuild(t)
	ctx := context.Background()

	top, err := f.engine.CreateRole(ctx, "g1", "owner", "top", "", 0)
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	roles, err := f.engine.Roles(ctx, "g1")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	base := roles[0]

	// mod tries to hoist a role above their own highest position.
	err = f.engine.ReorderRoles(ctx, "g1", "mod", []string{base.ID, mod.ID, top.ID})
	if !errors.Is(err, ErrHierarchyViolation) {
		t.Fatalf("hoist above own rank: got %v, want ErrHierarchyViolation", err)
	}

	// The owner may apply the same ordering.
	if err := f.engine.ReorderRoles(ctx, "g1", "owner", []string{base.ID, mod.ID, top.ID}); err != nil {
		t.Fatalf("owner reorder: %v", err)
	}
	roles, err = f.engine.Roles(ctx, "g1")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if roles[2].ID != top.ID {
		t.Fatalf("highest role is %s, want %s", roles[2].ID, top.ID)
	}
}

func TestReorderRolesRejectsPartialOrdering(t *testing.T) {
	f := newTestEngine(t)
	mod := f.seedGuild(t)

	err := f.engine.ReorderRoles(context.Background(), "g1", "owner", []string{mod.ID})
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Fatalf("partial ordering: got %v, want ErrInvalidOrdering", err)
	}
}

func TestAssignableRolesFiltersByRank(t *testing.T) {
	f := newTestEngine(t)
	f.seedGuild(t)
	ctx := context.Background()

	below, err := f.engine.CreateRole(ctx, "g1", "owner", "below", "", 0)
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	got, err := f.engine.AssignableRoles(ctx, "g1", "mod")
	if err != nil {
		t.Fatalf("AssignableRoles: %v", err)
	}
	if len(got) != 1 || got[0].ID != below.ID {
		t.Fatalf("mod assignable = %v, want only the lower role", got)
	}

	got, err = f.engine.AssignableRoles(ctx, "g1", "owner")
	if err != nil {
		t.Fatalf("AssignableRoles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("owner assignable = %d roles, want every non-base role", len(got))
	}
}

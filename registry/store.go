package registry

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/guildguard/guildguard/permission"
)

// Store is an in-memory registry of guilds, roles, memberships, and channel
// overrides. All mutations are optimistic: callers may pin an expected
// version (0 means unpinned) and receive [ErrVersionConflict] when the
// entity changed underneath them. Locks are held only for the duration of a
// single call; reads hand out copies, never interior pointers.
type Store struct {
	mu        sync.RWMutex
	guilds    map[string]*guildState
	roleGuild map[string]string // role ID -> guild ID
	maxRoles  int
}

type guildState struct {
	mu      sync.RWMutex
	id      string
	ownerID string
	roles   map[string]*Role
	members map[string]*Membership
	// overrides is keyed channel ID -> role ID -> row.
	overrides map[string]map[string]*Override
}

// NewStore returns an empty Store. maxRoles bounds the number of roles per
// guild, base role included; zero or negative means unlimited.
func NewStore(maxRoles int) *Store {
	return &Store{
		guilds:    make(map[string]*guildState),
		roleGuild: make(map[string]string),
		maxRoles:  maxRoles,
	}
}

func (s *Store) guild(guildID string) (*guildState, error) {
	s.mu.RLock()
	g, ok := s.guilds[guildID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (s *Store) guildOfRole(roleID string) (*guildState, error) {
	s.mu.RLock()
	gid, ok := s.roleGuild[roleID]
	var g *guildState
	if ok {
		g = s.guilds[gid]
	}
	s.mu.RUnlock()
	if g == nil {
		return nil, ErrNotFound
	}
	return g, nil
}

/* ==================== guild lifecycle ==================== */

// CreateGuild registers a new guild with its owner and base role. The base
// role's position is forced to 0 and its IsBase flag set regardless of the
// caller's values. The owner is enrolled as the first member.
func (s *Store) CreateGuild(guildID, ownerID string, base Role) (Role, error) {
	base.ID = uuid.NewString()
	base.GuildID = guildID
	base.Position = 0
	base.IsBase = true
	base.Version = 1

	g := &guildState{
		id:        guildID,
		ownerID:   ownerID,
		roles:     map[string]*Role{base.ID: &base},
		members:   make(map[string]*Membership),
		overrides: make(map[string]map[string]*Override),
	}
	g.members[ownerID] = &Membership{GuildID: guildID, UserID: ownerID, IsOwner: true, Version: 1}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.guilds[guildID]; exists {
		return Role{}, ErrGuildExists
	}
	s.guilds[guildID] = g
	s.roleGuild[base.ID] = guildID
	return base, nil
}

// View returns a consistent snapshot of guildID's roles, the overrides of
// channelID (may be empty for guild scope), and the memberships of the
// given users. Unknown user IDs are simply absent from the view.
func (s *Store) View(guildID, channelID string, userIDs ...string) (*View, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	v := &View{
		GuildID: guildID,
		Roles:   make([]Role, 0, len(g.roles)),
		members: make(map[string]Membership, len(userIDs)),
	}
	for _, r := range g.roles {
		v.Roles = append(v.Roles, *r)
	}
	sort.Slice(v.Roles, func(i, j int) bool { return v.Roles[i].Position < v.Roles[j].Position })

	if channelID != "" {
		for _, o := range g.overrides[channelID] {
			v.Overrides = append(v.Overrides, *o)
		}
	}
	for _, uid := range userIDs {
		if m, ok := g.members[uid]; ok {
			cp := *m
			cp.RoleIDs = append([]string(nil), m.RoleIDs...)
			v.members[uid] = cp
		}
	}
	return v, nil
}

/* ==================== roles ==================== */

// Roles returns all roles of a guild in ascending position order.
func (s *Store) Roles(guildID string) ([]Role, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Role, 0, len(g.roles))
	for _, r := range g.roles {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Role returns a single role by ID.
func (s *Store) Role(roleID string) (Role, error) {
	g, err := s.guildOfRole(roleID)
	if err != nil {
		return Role{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.roles[roleID]
	if !ok {
		return Role{}, ErrNotFound
	}
	return *r, nil
}

// InsertRole creates a new role just above the base role, shifting every
// non-base role up one position. Shifted roles get their versions bumped so
// concurrent pinned edits observe the move.
func (s *Store) InsertRole(guildID, name, color string, perms permission.Set) (Role, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return Role{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if s.maxRoles > 0 && len(g.roles) >= s.maxRoles {
		return Role{}, ErrRoleLimit
	}
	for _, r := range g.roles {
		if !r.IsBase {
			r.Position++
			r.Version++
		}
	}
	role := &Role{
		ID:          uuid.NewString(),
		GuildID:     guildID,
		Name:        name,
		Color:       color,
		Permissions: perms,
		Position:    1,
		Version:     1,
	}
	g.roles[role.ID] = role

	s.mu.Lock()
	s.roleGuild[role.ID] = guildID
	s.mu.Unlock()
	return *role, nil
}

// UpdateRole applies mutate to the role under the guild lock. When expected
// is non-zero and does not match the stored version, it fails with
// [ErrVersionConflict] without calling mutate. On success the role's
// version is incremented and both the before and after images are returned.
func (s *Store) UpdateRole(roleID string, expected uint64, mutate func(*Role) error) (before, after Role, err error) {
	g, err := s.guildOfRole(roleID)
	if err != nil {
		return Role{}, Role{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.roles[roleID]
	if !ok {
		return Role{}, Role{}, ErrNotFound
	}
	if expected != 0 && r.Version != expected {
		return Role{}, Role{}, ErrVersionConflict
	}
	before = *r
	next := *r
	if err := mutate(&next); err != nil {
		return Role{}, Role{}, err
	}
	// Identity and ordering fields are not mutable through this path.
	next.ID, next.GuildID = r.ID, r.GuildID
	next.Position, next.IsBase = r.Position, r.IsBase
	next.Version = r.Version + 1
	*r = next
	return before, *r, nil
}

// DeleteRole removes a role, its channel overrides, and its membership
// assignments, then closes the position gap it leaves. The base role cannot
// be deleted.
func (s *Store) DeleteRole(roleID string, expected uint64) (Role, error) {
	g, err := s.guildOfRole(roleID)
	if err != nil {
		return Role{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.roles[roleID]
	if !ok {
		return Role{}, ErrNotFound
	}
	if r.IsBase {
		return Role{}, ErrBaseRoleProtected
	}
	if expected != 0 && r.Version != expected {
		return Role{}, ErrVersionConflict
	}
	removed := *r
	delete(g.roles, roleID)
	for _, other := range g.roles {
		if other.Position > removed.Position {
			other.Position--
			other.Version++
		}
	}
	for channelID, rows := range g.overrides {
		if _, ok := rows[roleID]; ok {
			delete(rows, roleID)
			if len(rows) == 0 {
				delete(g.overrides, channelID)
			}
		}
	}
	for _, m := range g.members {
		for i, id := range m.RoleIDs {
			if id == roleID {
				m.RoleIDs = append(m.RoleIDs[:i], m.RoleIDs[i+1:]...)
				m.Version++
				break
			}
		}
	}

	s.mu.Lock()
	delete(s.roleGuild, roleID)
	s.mu.Unlock()
	return removed, nil
}

// Reorder replaces the guild's role ordering with the given role IDs from
// lowest to highest position. The slice must name every role exactly once
// with the base role first; partial reorders are rejected so the result is
// always a valid total order.
func (s *Store) Reorder(guildID string, order []string) error {
	g, err := s.guild(guildID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(order) != len(g.roles) {
		return ErrInvalidOrdering
	}
	seen := make(map[string]bool, len(order))
	for i, id := range order {
		r, ok := g.roles[id]
		if !ok || seen[id] {
			return ErrInvalidOrdering
		}
		if r.IsBase != (i == 0) {
			return ErrInvalidOrdering
		}
		seen[id] = true
	}
	for i, id := range order {
		r := g.roles[id]
		if r.Position != i {
			r.Position = i
			r.Version++
		}
	}
	return nil
}

/* ==================== membership ==================== */

// AddMember enrolls a user in the guild with no explicit roles. Adding an
// existing member is a no-op.
func (s *Store) AddMember(guildID, userID string) error {
	g, err := s.guild(guildID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[userID]; ok {
		return nil
	}
	g.members[userID] = &Membership{GuildID: guildID, UserID: userID, Version: 1}
	return nil
}

// RemoveMember drops a user's membership and all their role assignments.
func (s *Store) RemoveMember(guildID, userID string) error {
	g, err := s.guild(guildID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[userID]; !ok {
		return ErrNotFound
	}
	delete(g.members, userID)
	return nil
}

// Membership returns a copy of the user's membership.
func (s *Store) Membership(guildID, userID string) (Membership, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return Membership{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.members[userID]
	if !ok {
		return Membership{}, ErrNotFound
	}
	cp := *m
	cp.RoleIDs = append([]string(nil), m.RoleIDs...)
	return cp, nil
}

// AssignRole grants roleID to the member. Assigning an already-held role is
// a no-op; the base role is held implicitly and cannot be assigned.
func (s *Store) AssignRole(guildID, userID, roleID string, expected uint64) (Membership, error) {
	return s.mutateMembership(guildID, userID, expected, func(g *guildState, m *Membership) error {
		r, ok := g.roles[roleID]
		if !ok {
			return ErrNotFound
		}
		if r.IsBase {
			return ErrBaseRoleProtected
		}
		if m.HasRole(roleID) {
			return errNoop
		}
		m.RoleIDs = append(m.RoleIDs, roleID)
		return nil
	})
}

// UnassignRole revokes roleID from the member. Removing a role the member
// does not hold fails with [ErrNotFound].
func (s *Store) UnassignRole(guildID, userID, roleID string, expected uint64) (Membership, error) {
	return s.mutateMembership(guildID, userID, expected, func(g *guildState, m *Membership) error {
		for i, id := range m.RoleIDs {
			if id == roleID {
				m.RoleIDs = append(m.RoleIDs[:i], m.RoleIDs[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

// errNoop signals a mutation that matched the desired state already; the
// membership is returned unchanged without a version bump.
var errNoop = &noopError{}

type noopError struct{}

func (*noopError) Error() string { return "registry: no-op" }

func (s *Store) mutateMembership(guildID, userID string, expected uint64, mutate func(*guildState, *Membership) error) (Membership, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return Membership{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[userID]
	if !ok {
		return Membership{}, ErrNotFound
	}
	if expected != 0 && m.Version != expected {
		return Membership{}, ErrVersionConflict
	}
	if err := mutate(g, m); err != nil {
		if err == errNoop {
			cp := *m
			cp.RoleIDs = append([]string(nil), m.RoleIDs...)
			return cp, nil
		}
		return Membership{}, err
	}
	m.Version++
	cp := *m
	cp.RoleIDs = append([]string(nil), m.RoleIDs...)
	return cp, nil
}

/* ==================== overrides ==================== */

// Overrides returns the override rows of one channel.
func (s *Store) Overrides(guildID, channelID string) ([]Override, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	rows := g.overrides[channelID]
	out := make([]Override, 0, len(rows))
	for _, o := range rows {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

// SetOverride upserts the (channel, role) override row. Allow and deny must
// be disjoint. Setting both to empty deletes the row, so an all-inherit
// override is never stored. The returned row is the zero Override when the
// call deleted it.
func (s *Store) SetOverride(guildID, channelID, roleID string, allow, deny permission.Set, expected uint64) (Override, error) {
	if !allow.Intersect(deny).IsEmpty() {
		return Override{}, ErrInvalidOverrideState
	}
	g, err := s.guild(guildID)
	if err != nil {
		return Override{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.roles[roleID]; !ok {
		return Override{}, ErrNotFound
	}
	rows := g.overrides[channelID]
	existing := rows[roleID]
	if expected != 0 && (existing == nil || existing.Version != expected) {
		return Override{}, ErrVersionConflict
	}

	if allow.IsEmpty() && deny.IsEmpty() {
		if existing != nil {
			delete(rows, roleID)
			if len(rows) == 0 {
				delete(g.overrides, channelID)
			}
		}
		return Override{}, nil
	}

	if existing != nil {
		existing.Allow, existing.Deny = allow, deny
		existing.Version++
		return *existing, nil
	}
	if rows == nil {
		rows = make(map[string]*Override)
		g.overrides[channelID] = rows
	}
	o := &Override{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		ChannelID: channelID,
		RoleID:    roleID,
		Allow:     allow,
		Deny:      deny,
		Version:   1,
	}
	rows[roleID] = o
	return *o, nil
}

// DeleteOverride removes the (channel, role) override row.
func (s *Store) DeleteOverride(guildID, channelID, roleID string, expected uint64) (Override, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return Override{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	rows := g.overrides[channelID]
	o, ok := rows[roleID]
	if !ok {
		return Override{}, ErrNotFound
	}
	if expected != 0 && o.Version != expected {
		return Override{}, ErrVersionConflict
	}
	removed := *o
	delete(rows, roleID)
	if len(rows) == 0 {
		delete(g.overrides, channelID)
	}
	return removed, nil
}

// OwnerID returns the guild's owner.
func (s *Store) OwnerID(guildID string) (string, error) {
	g, err := s.guild(guildID)
	if err != nil {
		return "", err
	}
	return g.ownerID, nil
}

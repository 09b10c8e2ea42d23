package guildguard

// CanManage decides whether an actor may perform a hierarchy-gated action
// on a target at the given position: true when the actor is owner or their
// highest position strictly exceeds the target's. Equal positions are
// always rejected; holding MANAGE_ROLES never overrides this.
func CanManage(actorHighest int, actorIsOwner bool, targetHighest int) bool {
	if actorIsOwner {
		return true
	}
	return actorHighest > targetHighest
}

// requireRank wraps CanManage with the typed error callers surface.
func requireRank(actorHighest int, actorIsOwner bool, targetHighest int) error {
	if CanManage(actorHighest, actorIsOwner, targetHighest) {
		return nil
	}
	return &HierarchyError{ActorPosition: actorHighest, TargetPosition: targetHighest}
}

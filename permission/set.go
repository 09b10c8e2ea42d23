package permission

// Set is a fixed-width bitmask over the closed capability enumeration.
//
// The zero value is the empty set. Sets compose with [Set.Union],
// [Set.Difference], and [Set.Intersect]; containment is [Set.Has].
type Set uint64

const (
	// Content (bits 0-4).
	SendMessages Set = 1 << 0
	EmbedLinks   Set = 1 << 1
	AttachFiles  Set = 1 << 2
	UseEmoji     Set = 1 << 3
	AddReactions Set = 1 << 4

	// Voice (bits 5-9).
	VoiceConnect      Set = 1 << 5
	VoiceSpeak        Set = 1 << 6
	VoiceMuteOthers   Set = 1 << 7
	VoiceDeafenOthers Set = 1 << 8
	VoiceMoveMembers  Set = 1 << 9

	// Moderation (bits 10-13).
	ManageMessages Set = 1 << 10
	TimeoutMembers Set = 1 << 11
	KickMembers    Set = 1 << 12
	BanMembers     Set = 1 << 13

	// Guild management (bits 14-18).
	ManageChannels    Set = 1 << 14
	ManageRoles       Set = 1 << 15
	ViewAuditLog      Set = 1 << 16
	ManageGuild       Set = 1 << 17
	TransferOwnership Set = 1 << 18

	// Invites (bits 19-20).
	CreateInvite  Set = 1 << 19
	ManageInvites Set = 1 << 20

	// Pages (bit 21).
	ManagePages Set = 1 << 21

	// Screen sharing (bit 22).
	ScreenShare Set = 1 << 22

	// Mentions (bit 23).
	MentionEveryone Set = 1 << 23

	// Channel visibility (bit 24).
	ViewChannel Set = 1 << 24
)

// All is the union of every known capability bit. It is the effective set
// of a guild owner and the widest value [Set.Normalize] can produce.
const All Set = ViewChannel<<1 - 1

// EveryoneDefault is the permission set seeded onto the base role of a new
// guild: basic content and voice capabilities every member should have.
const EveryoneDefault = SendMessages | EmbedLinks | AttachFiles | UseEmoji |
	AddReactions | VoiceConnect | VoiceSpeak | CreateInvite

// ModeratorDefault extends EveryoneDefault with voice moderation and member
// management, minus ban and channel management.
const ModeratorDefault = EveryoneDefault | VoiceMuteOthers | VoiceDeafenOthers |
	VoiceMoveMembers | ManageMessages | TimeoutMembers | KickMembers |
	ViewAuditLog | ManageInvites | ScreenShare | MentionEveryone

// OfficerDefault extends ModeratorDefault with ban, channel, and page
// management.
const OfficerDefault = ModeratorDefault | BanMembers | ManageChannels | ManagePages

// Dangerous is the statically enumerated set of capabilities that can never
// be granted to the base role, regardless of who requests the grant. The
// escalation guard treats this as an absolute ceiling: it applies to guild
// owners too.
const Dangerous = VoiceMuteOthers | VoiceDeafenOthers | VoiceMoveMembers |
	ManageMessages | TimeoutMembers | KickMembers | BanMembers |
	ManageChannels | ManageRoles | ViewAuditLog | ManageGuild |
	TransferOwnership | ManageInvites | ManagePages | ScreenShare |
	MentionEveryone

// Has reports whether s contains every bit of p.
func (s Set) Has(p Set) bool {
	return s&p == p
}

// Union returns the bits present in s, p, or both.
func (s Set) Union(p Set) Set {
	return s | p
}

// Difference returns the bits present in s but not in p.
func (s Set) Difference(p Set) Set {
	return s &^ p
}

// Intersect returns the bits present in both s and p.
func (s Set) Intersect(p Set) Set {
	return s & p
}

// IsEmpty reports whether no bits are set.
func (s Set) IsEmpty() bool {
	return s == 0
}

// Normalize drops bits outside the known enumeration. Values read from
// storage or the wire pass through Normalize before any decision is made,
// so a bit this release does not know about can never grant anything.
func (s Set) Normalize() Set {
	return s & All
}

// SafeForBase reports whether s contains no bit of the [Dangerous] ceiling.
func (s Set) SafeForBase() bool {
	return s&Dangerous == 0
}

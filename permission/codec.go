package permission

import (
	"fmt"
	"strings"
)

// order matches bit position; keep appended-only.
var names = []struct {
	bit  Set
	name string
}{
	{SendMessages, "SEND_MESSAGES"},
	{EmbedLinks, "EMBED_LINKS"},
	{AttachFiles, "ATTACH_FILES"},
	{UseEmoji, "USE_EMOJI"},
	{AddReactions, "ADD_REACTIONS"},
	{VoiceConnect, "VOICE_CONNECT"},
	{VoiceSpeak, "VOICE_SPEAK"},
	{VoiceMuteOthers, "VOICE_MUTE_OTHERS"},
	{VoiceDeafenOthers, "VOICE_DEAFEN_OTHERS"},
	{VoiceMoveMembers, "VOICE_MOVE_MEMBERS"},
	{ManageMessages, "MANAGE_MESSAGES"},
	{TimeoutMembers, "TIMEOUT_MEMBERS"},
	{KickMembers, "KICK_MEMBERS"},
	{BanMembers, "BAN_MEMBERS"},
	{ManageChannels, "MANAGE_CHANNELS"},
	{ManageRoles, "MANAGE_ROLES"},
	{ViewAuditLog, "VIEW_AUDIT_LOG"},
	{ManageGuild, "MANAGE_GUILD"},
	{TransferOwnership, "TRANSFER_OWNERSHIP"},
	{CreateInvite, "CREATE_INVITE"},
	{ManageInvites, "MANAGE_INVITES"},
	{ManagePages, "MANAGE_PAGES"},
	{ScreenShare, "SCREEN_SHARE"},
	{MentionEveryone, "MENTION_EVERYONE"},
	{ViewChannel, "VIEW_CHANNEL"},
}

var byName = func() map[string]Set {
	m := make(map[string]Set, len(names))
	for _, n := range names {
		m[n.name] = n.bit
	}
	return m
}()

// Names returns the canonical capability names of every bit set in s, in
// bit-position order. Unknown bits are ignored.
func (s Set) Names() []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if s.Has(n.bit) {
			out = append(out, n.name)
		}
	}
	return out
}

// String renders s as pipe-separated capability names, or "NONE" for the
// empty set.
func (s Set) String() string {
	if s.Normalize().IsEmpty() {
		return "NONE"
	}
	return strings.Join(s.Names(), " | ")
}

// FromName resolves a single canonical capability name. Unknown or
// misspelled names are an error, never a silent no-op.
func FromName(name string) (Set, error) {
	bit, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("unknown capability %q", name)
	}
	return bit, nil
}

// FromNames resolves a list of canonical capability names into a Set.
func FromNames(perms []string) (Set, error) {
	var s Set
	for _, name := range perms {
		bit, err := FromName(name)
		if err != nil {
			return 0, err
		}
		s |= bit
	}
	return s, nil
}

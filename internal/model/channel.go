package model

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
)

// ChannelType is a closed tagged enum. Wire uses single-letter tags
// ("O", "P", "G", "D"); archive and internal code use the long names.
// An unknown wire tag degrades to Open with a warning — never an error,
// since a channel whose type we can't parse should still be archivable.
type ChannelType string

const (
	ChannelOpen    ChannelType = "Open"
	ChannelPrivate ChannelType = "Private"
	ChannelGroup   ChannelType = "Group"
	ChannelDirect  ChannelType = "Direct"
)

func channelTypeFromTag(tag string) ChannelType {
	switch tag {
	case "O":
		return ChannelOpen
	case "P":
		return ChannelPrivate
	case "G":
		return ChannelGroup
	case "D":
		return ChannelDirect
	default:
		slog.Warn("unknown channel type tag, degrading to Open", "tag", tag)

		return ChannelOpen
	}
}

func (t ChannelType) tag() string {
	switch t {
	case ChannelPrivate:
		return "P"
	case ChannelGroup:
		return "G"
	case ChannelDirect:
		return "D"
	default:
		return "O"
	}
}

// stemPrefix is the filename-stem prefix for this channel kind, per the
// archive format's external interface (spec §6).
func (t ChannelType) stemPrefix() string {
	switch t {
	case ChannelPrivate:
		return "p"
	case ChannelGroup:
		return "g"
	case ChannelDirect:
		return "d"
	default:
		return "o"
	}
}

// Channel is a team channel, a direct message pair, or a group message.
type Channel struct {
	Id            Id          `json:"id"`
	Type          ChannelType `json:"type"`
	Name          string      `json:"name"` // internal name (URL slug / direct-channel pair encoding)
	DisplayName   string      `json:"displayName,omitempty"`
	TeamId        Id          `json:"teamId,omitempty"`
	TotalMsgCount int64       `json:"-"` // approximate; never persisted, see spec §9 "approximate message count"
	// LastMessageTime is the server's last_post_at, the planner's
	// lastChannelMessageTime input (spec §4.5). It is never persisted to
	// the archive header — only the archive's own PostStorage.EndTime is.
	LastMessageTime Time `json:"-"`

	Extra Misc `json:"-"`
}

func (c Channel) Equal(other Channel) bool { return c.Id == other.Id }

// DirectChannelName computes the internal name Mattermost uses for a
// direct-message channel between two users: the two ids joined by "__",
// lexicographically ascending. This is the sole way to match a direct
// channel by peer user (spec §3).
func DirectChannelName(a, b Id) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}

	return string(lo) + "__" + string(hi)
}

// DirectChannelPeer extracts the two member ids from a direct channel's
// internal name, returning ok=false if the name is not a two-id "__"
// pair. The local user's id is not distinguished here: callers compare
// both halves against the id they already know.
func DirectChannelPeer(internalName string) (a, b Id, ok bool) {
	parts := strings.Split(internalName, "__")
	if len(parts) != 2 {
		return "", "", false
	}

	return Id(parts[0]), Id(parts[1]), true
}

type serverChannel struct {
	Id            Id     `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	TeamId        Id     `json:"team_id"`
	TotalMsgCount int64  `json:"total_msg_count"`
	LastPostAt    Time   `json:"last_post_at"`
}

// ChannelFromServer builds a Channel from the server's /channels
// response shape.
func ChannelFromServer(raw json.RawMessage) (Channel, error) {
	var sc serverChannel
	if err := json.Unmarshal(raw, &sc); err != nil {
		return Channel{}, err
	}

	misc, err := consumeFields(raw,
		"id", "type", "name", "display_name", "team_id", "total_msg_count",
		"create_at", "update_at", "delete_at", "header", "purpose",
		"last_post_at", "creator_id", "scheme_id", "props",
	)
	if err != nil {
		return Channel{}, err
	}

	return Channel{
		Id: sc.Id, Type: channelTypeFromTag(sc.Type), Name: sc.Name,
		DisplayName: sc.DisplayName, TeamId: sc.TeamId,
		TotalMsgCount: sc.TotalMsgCount, LastMessageTime: sc.LastPostAt, Extra: misc,
	}, nil
}

type archiveChannel struct {
	Id          Id          `json:"id"`
	Type        ChannelType `json:"type"`
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName,omitempty"`
	TeamId      Id          `json:"teamId,omitempty"`
}

// ChannelFromArchive decodes a Channel from a header's "channel" field.
func ChannelFromArchive(raw json.RawMessage) (Channel, error) {
	var ac archiveChannel
	if err := json.Unmarshal(raw, &ac); err != nil {
		return Channel{}, err
	}

	misc, err := consumeFields(raw, "id", "type", "name", "displayName", "teamId")
	if err != nil {
		return Channel{}, err
	}

	return Channel{Id: ac.Id, Type: ac.Type, Name: ac.Name, DisplayName: ac.DisplayName, TeamId: ac.TeamId, Extra: misc}, nil
}

// ToArchive encodes the Channel into the header's "channel" field.
func (c Channel) ToArchive() (json.RawMessage, error) {
	typed, err := json.Marshal(archiveChannel{Id: c.Id, Type: c.Type, Name: c.Name, DisplayName: c.DisplayName, TeamId: c.TeamId})
	if err != nil {
		return nil, err
	}

	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}

	return json.Marshal(mergeMisc(typedMap, c.Extra))
}

// Stem computes the archive filename stem for this channel, given the
// resolved team internal name (empty for Direct/Group channels) and,
// for Direct channels, the locally-authenticated user and, for Group
// channels, the sorted member usernames (spec §6).
func (c Channel) Stem(teamInternalName, localUsername string, groupMemberUsernames []string, otherDirectUsername string) string {
	prefix := c.Type.stemPrefix()

	switch c.Type {
	case ChannelDirect:
		return prefix + "." + localUsername + "--" + otherDirectUsername
	case ChannelGroup:
		members := append([]string(nil), groupMemberUsernames...)
		sort.Strings(members)

		return prefix + "." + strings.Join(members, "-")
	default:
		return prefix + "." + teamInternalName + "--" + c.Name
	}
}

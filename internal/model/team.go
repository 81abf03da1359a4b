package model

import (
	"encoding/json"
	"log/slog"
)

// TeamType is a closed tagged enum, mirroring ChannelType's wire/long-name
// split. An unknown wire tag degrades to Open with a warning.
type TeamType string

const (
	TeamOpen       TeamType = "Open"
	TeamInviteOnly TeamType = "InviteOnly"
)

func teamTypeFromTag(tag string) TeamType {
	switch tag {
	case "O":
		return TeamOpen
	case "I":
		return TeamInviteOnly
	default:
		slog.Warn("unknown team type tag, degrading to Open", "tag", tag)

		return TeamOpen
	}
}

// Team is a server team. Its Channels map is populated once per run by
// internal/cache, enumerating /users/{userId}/teams/{teamId}/channels —
// it is never present in a channel header (spec §3: "Team (without its
// channels list)").
type Team struct {
	Id          Id       `json:"id"`
	Type        TeamType `json:"type"`
	Name        string   `json:"name"` // internal name
	DisplayName string   `json:"displayName,omitempty"`

	Channels map[Id]Channel `json:"-"`

	Extra Misc `json:"-"`
}

func (t Team) Equal(other Team) bool { return t.Id == other.Id }

type serverTeam struct {
	Id          Id     `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// TeamFromServer builds a Team from the server's /teams response shape.
// Channels is left nil; populate it separately via the entity cache.
func TeamFromServer(raw json.RawMessage) (Team, error) {
	var st serverTeam
	if err := json.Unmarshal(raw, &st); err != nil {
		return Team{}, err
	}

	misc, err := consumeFields(raw,
		"id", "type", "name", "display_name", "create_at", "update_at",
		"delete_at", "description", "invite_id", "allowed_domains",
		"allow_open_invite", "scheme_id",
	)
	if err != nil {
		return Team{}, err
	}

	return Team{Id: st.Id, Type: teamTypeFromTag(st.Type), Name: st.Name, DisplayName: st.DisplayName, Extra: misc}, nil
}

type archiveTeam struct {
	Id          Id       `json:"id"`
	Type        TeamType `json:"type"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
}

// TeamFromArchive decodes a Team (without channels) from a header's "team" field.
func TeamFromArchive(raw json.RawMessage) (Team, error) {
	var at archiveTeam
	if err := json.Unmarshal(raw, &at); err != nil {
		return Team{}, err
	}

	misc, err := consumeFields(raw, "id", "type", "name", "displayName")
	if err != nil {
		return Team{}, err
	}

	return Team{Id: at.Id, Type: at.Type, Name: at.Name, DisplayName: at.DisplayName, Extra: misc}, nil
}

// ToArchive encodes the Team (without its channels) into the header's
// "team" field.
func (t Team) ToArchive() (json.RawMessage, error) {
	typed, err := json.Marshal(archiveTeam{Id: t.Id, Type: t.Type, Name: t.Name, DisplayName: t.DisplayName})
	if err != nil {
		return nil, err
	}

	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}

	return json.Marshal(mergeMisc(typedMap, t.Extra))
}

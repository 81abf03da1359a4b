package archive

import (
	"encoding/json"
	"fmt"

	"github.com/rakunlabs/mmarchive/internal/model"
)

// SchemaVersion is the only header version this implementation writes.
// "1" is also accepted on load (same shape); any other major version
// is a Schema-kind error that the recovery arbiter's unloadable-header
// path handles (spec §4.4, §7).
const SchemaVersion = "0"

// ChannelHeader is one channel's <stem>.meta.json contents (spec §3,
// §6). Team is nil for Direct and Group channels, and never carries
// its Channels map even when present (that belongs to the entity
// cache, not the archive).
type ChannelHeader struct {
	Version string
	Team    *model.Team
	Channel model.Channel
	Storage *PostStorage
	Users   []model.User
	Emojis  []model.Emoji
}

type wireHeader struct {
	Version string            `json:"version"`
	Team    json.RawMessage   `json:"team,omitempty"`
	Channel json.RawMessage   `json:"channel"`
	Storage *PostStorage      `json:"storage,omitempty"`
	Users   []json.RawMessage `json:"users,omitempty"`
	Emojis  []json.RawMessage `json:"emojis,omitempty"`
}

// Encode renders the header to its on-disk JSON form, pretty-printed
// (it's a single object, so indentation costs nothing and helps a
// human skim it).
func (h ChannelHeader) Encode() ([]byte, error) {
	w := wireHeader{Version: h.Version, Storage: h.Storage}

	if h.Team != nil {
		raw, err := h.Team.ToArchive()
		if err != nil {
			return nil, fmt.Errorf("archive: encode team: %w", err)
		}

		w.Team = raw
	}

	channelRaw, err := h.Channel.ToArchive()
	if err != nil {
		return nil, fmt.Errorf("archive: encode channel: %w", err)
	}

	w.Channel = channelRaw

	for _, u := range h.Users {
		raw, err := u.ToArchive()
		if err != nil {
			return nil, fmt.Errorf("archive: encode user %s: %w", u.Id, err)
		}

		w.Users = append(w.Users, raw)
	}

	for _, e := range h.Emojis {
		raw, err := e.ToArchive()
		if err != nil {
			return nil, fmt.Errorf("archive: encode emoji %s: %w", e.Id, err)
		}

		w.Emojis = append(w.Emojis, raw)
	}

	return json.MarshalIndent(w, "", "  ")
}

// DecodeHeader parses a header file's bytes. Schema validation (the
// version field) is performed separately by Validate, since a caller
// loading an unloadable header needs to distinguish "not JSON at all"
// from "valid JSON, wrong major version" for the recovery arbiter.
func DecodeHeader(raw []byte) (ChannelHeader, error) {
	var w wireHeader
	if err := json.Unmarshal(raw, &w); err != nil {
		return ChannelHeader{}, fmt.Errorf("archive: decode header: %w", err)
	}

	h := ChannelHeader{Version: w.Version, Storage: w.Storage}

	if len(w.Team) > 0 {
		t, err := model.TeamFromArchive(w.Team)
		if err != nil {
			return ChannelHeader{}, fmt.Errorf("archive: decode header team: %w", err)
		}

		h.Team = &t
	}

	ch, err := model.ChannelFromArchive(w.Channel)
	if err != nil {
		return ChannelHeader{}, fmt.Errorf("archive: decode header channel: %w", err)
	}

	h.Channel = ch

	for _, raw := range w.Users {
		u, err := model.UserFromArchive(raw)
		if err != nil {
			return ChannelHeader{}, fmt.Errorf("archive: decode header user: %w", err)
		}

		h.Users = append(h.Users, u)
	}

	for _, raw := range w.Emojis {
		e, err := model.EmojiFromArchive(raw)
		if err != nil {
			return ChannelHeader{}, fmt.Errorf("archive: decode header emoji: %w", err)
		}

		h.Emojis = append(h.Emojis, e)
	}

	return h, nil
}

// AddUser inserts u into the header's user set if not already present
// (by id), used during fetch enrichment to record every author/reactor
// a channel's posts reference.
func (h *ChannelHeader) AddUser(u model.User) {
	for i := range h.Users {
		if h.Users[i].Id == u.Id {
			return
		}
	}

	h.Users = append(h.Users, u)
}

// AddEmoji inserts e into the header's emoji set if not already present.
func (h *ChannelHeader) AddEmoji(e model.Emoji) {
	for i := range h.Emojis {
		if h.Emojis[i].Id == e.Id {
			return
		}
	}

	h.Emojis = append(h.Emojis, e)
}

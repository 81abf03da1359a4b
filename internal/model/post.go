package model

import "encoding/json"

// Post is a single message in a channel. Once written to the archive's
// data file it is immutable; later runs only ever append new posts
// after it, never rewrite it.
//
// Invariants (enforced by PostFromServer, not by the struct itself;
// PostFromArchive takes the archived values as written, and a post built
// any other way is the caller's responsibility):
//   - UpdateTime, if non-nil, is strictly greater than CreateTime.
//   - PublicUpdateTime, if non-nil, equals neither CreateTime nor UpdateTime.
type Post struct {
	Id        Id     `json:"id"`
	ChannelId Id     `json:"channelId"`
	RootId    Id     `json:"rootId,omitempty"`
	UserId    Id     `json:"userId"`
	Type      string `json:"type,omitempty"`
	Message   string `json:"message"`

	CreateTime       Time  `json:"createTime"`
	UpdateTime       *Time `json:"updateTime,omitempty"`
	PublicUpdateTime *Time `json:"publicUpdateTime,omitempty"`

	Files     []FileAttachment `json:"files,omitempty"`
	Reactions []PostReaction   `json:"reactions,omitempty"`
	// EmojiIds references header.emojis; the full Emoji objects a post
	// mentions are never duplicated per-post (see enrichment note below).
	EmojiIds []Id `json:"emojiIds,omitempty"`

	Extra Misc `json:"-"`
}

func (p Post) Equal(other Post) bool { return p.Id == other.Id }

type serverPostMetadata struct {
	Files     []json.RawMessage `json:"files"`
	Reactions []json.RawMessage `json:"reactions"`
	Emojis    []json.RawMessage `json:"emojis"`
}

type serverPost struct {
	Id        Id     `json:"id"`
	ChannelId Id     `json:"channel_id"`
	RootId    Id     `json:"root_id"`
	UserId    Id     `json:"user_id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	CreateAt  Time   `json:"create_at"`
	UpdateAt  Time   `json:"update_at"`
	EditAt    Time   `json:"edit_at"`

	Metadata *serverPostMetadata `json:"metadata"`
}

// PostFromServer strips server-only noise (pending_post_id, hashtags
// derived from message text, original_id, props used only for live
// rendering) and normalizes timestamps: update_at collapsing onto
// create_at means "never edited" and is represented as a nil
// UpdateTime, not a zero Time. It returns the full Emoji objects
// embedded in the post's metadata alongside the post itself, since
// those belong in header.emojis, not duplicated per post — the post
// itself keeps only their ids, in EmojiIds.
func PostFromServer(raw json.RawMessage) (Post, []Emoji, error) {
	var sp serverPost
	if err := json.Unmarshal(raw, &sp); err != nil {
		return Post{}, nil, err
	}

	misc, err := consumeFields(raw,
		"id", "channel_id", "root_id", "user_id", "type", "message",
		"create_at", "update_at", "edit_at", "delete_at", "metadata",
		"parent_id", "original_id", "props", "hashtags", "pending_post_id",
		"reply_count", "last_reply_at", "is_pinned", "file_ids", "participants",
	)
	if err != nil {
		return Post{}, nil, err
	}

	p := Post{
		Id:         sp.Id,
		ChannelId:  sp.ChannelId,
		RootId:     sp.RootId,
		UserId:     sp.UserId,
		Type:       sp.Type,
		Message:    sp.Message,
		CreateTime: sp.CreateAt,
		Extra:      misc,
	}

	if sp.UpdateAt > sp.CreateAt {
		ut := sp.UpdateAt
		p.UpdateTime = &ut
	}

	if sp.EditAt != 0 && sp.EditAt != sp.CreateAt && (p.UpdateTime == nil || sp.EditAt != *p.UpdateTime) {
		et := sp.EditAt
		p.PublicUpdateTime = &et
	}

	var emojis []Emoji

	if sp.Metadata != nil {
		for _, rf := range sp.Metadata.Files {
			f, err := FileFromServer(rf)
			if err != nil {
				return Post{}, nil, err
			}

			p.Files = append(p.Files, f)
		}

		for _, rr := range sp.Metadata.Reactions {
			r, err := ReactionFromServer(rr)
			if err != nil {
				return Post{}, nil, err
			}

			p.Reactions = append(p.Reactions, r)
		}

		for _, re := range sp.Metadata.Emojis {
			e, err := EmojiFromServer(re)
			if err != nil {
				return Post{}, nil, err
			}

			emojis = append(emojis, e)
			p.EmojiIds = append(p.EmojiIds, e.Id)
		}
	}

	return p, emojis, nil
}

type archivePost struct {
	Id        Id     `json:"id"`
	ChannelId Id     `json:"channelId"`
	RootId    Id     `json:"rootId,omitempty"`
	UserId    Id     `json:"userId"`
	Type      string `json:"type,omitempty"`
	Message   string `json:"message"`

	CreateTime       Time  `json:"createTime"`
	UpdateTime       *Time `json:"updateTime,omitempty"`
	PublicUpdateTime *Time `json:"publicUpdateTime,omitempty"`

	Files     []json.RawMessage `json:"files,omitempty"`
	Reactions []json.RawMessage `json:"reactions,omitempty"`
	EmojiIds  []Id              `json:"emojiIds,omitempty"`
}

// PostFromArchive decodes a Post from one line of a channel's data file.
func PostFromArchive(raw json.RawMessage) (Post, error) {
	var ap archivePost
	if err := json.Unmarshal(raw, &ap); err != nil {
		return Post{}, err
	}

	misc, err := consumeFields(raw,
		"id", "channelId", "rootId", "userId", "type", "message",
		"createTime", "updateTime", "publicUpdateTime", "files", "reactions", "emojiIds",
	)
	if err != nil {
		return Post{}, err
	}

	p := Post{
		Id: ap.Id, ChannelId: ap.ChannelId, RootId: ap.RootId, UserId: ap.UserId,
		Type: ap.Type, Message: ap.Message,
		CreateTime: ap.CreateTime, UpdateTime: ap.UpdateTime, PublicUpdateTime: ap.PublicUpdateTime,
		EmojiIds: ap.EmojiIds,
		Extra:    misc,
	}

	for _, rf := range ap.Files {
		f, err := FileFromArchive(rf)
		if err != nil {
			return Post{}, err
		}

		p.Files = append(p.Files, f)
	}

	for _, rr := range ap.Reactions {
		r, err := ReactionFromArchive(rr)
		if err != nil {
			return Post{}, err
		}

		p.Reactions = append(p.Reactions, r)
	}

	return p, nil
}

// ToArchive encodes the Post into its compact archive-format JSON, one
// line of a channel's data file.
func (p Post) ToArchive() (json.RawMessage, error) {
	ap := archivePost{
		Id: p.Id, ChannelId: p.ChannelId, RootId: p.RootId, UserId: p.UserId,
		Type: p.Type, Message: p.Message,
		CreateTime: p.CreateTime, UpdateTime: p.UpdateTime, PublicUpdateTime: p.PublicUpdateTime,
		EmojiIds: p.EmojiIds,
	}

	for _, f := range p.Files {
		rf, err := f.ToArchive()
		if err != nil {
			return nil, err
		}

		ap.Files = append(ap.Files, rf)
	}

	for _, r := range p.Reactions {
		rr, err := r.ToArchive()
		if err != nil {
			return nil, err
		}

		ap.Reactions = append(ap.Reactions, rr)
	}

	typed, err := json.Marshal(ap)
	if err != nil {
		return nil, err
	}

	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}

	return json.Marshal(mergeMisc(typedMap, p.Extra))
}

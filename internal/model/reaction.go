package model

import "encoding/json"

// PostReaction is one user's emoji reaction to a post, pulled out of
// the post's metadata into a first-class sub-entity. It is denormalized:
// UserId/EmojiName are plain ids/names, not object references, per the
// archive's self-contained-file design.
type PostReaction struct {
	UserId    Id     `json:"userId"`
	EmojiName string `json:"emojiName"`
	CreateAt  Time   `json:"createAt,omitempty"`

	Extra Misc `json:"-"`
}

type serverReaction struct {
	UserId    Id     `json:"user_id"`
	EmojiName string `json:"emoji_name"`
	CreateAt  Time   `json:"create_at"`
}

// ReactionFromServer builds a PostReaction from one entry of a post's
// `metadata.reactions` array.
func ReactionFromServer(raw json.RawMessage) (PostReaction, error) {
	var sr serverReaction
	if err := json.Unmarshal(raw, &sr); err != nil {
		return PostReaction{}, err
	}

	misc, err := consumeFields(raw, "user_id", "emoji_name", "create_at", "post_id", "channel_id")
	if err != nil {
		return PostReaction{}, err
	}

	return PostReaction{UserId: sr.UserId, EmojiName: sr.EmojiName, CreateAt: sr.CreateAt, Extra: misc}, nil
}

type archiveReaction struct {
	UserId    Id     `json:"userId"`
	EmojiName string `json:"emojiName"`
	CreateAt  Time   `json:"createAt,omitempty"`
}

// ReactionFromArchive decodes a PostReaction from its compact archive-format JSON.
func ReactionFromArchive(raw json.RawMessage) (PostReaction, error) {
	var ar archiveReaction
	if err := json.Unmarshal(raw, &ar); err != nil {
		return PostReaction{}, err
	}

	misc, err := consumeFields(raw, "userId", "emojiName", "createAt")
	if err != nil {
		return PostReaction{}, err
	}

	return PostReaction{UserId: ar.UserId, EmojiName: ar.EmojiName, CreateAt: ar.CreateAt, Extra: misc}, nil
}

// ToArchive encodes the PostReaction into its compact archive-format JSON.
func (r PostReaction) ToArchive() (json.RawMessage, error) {
	typed, err := json.Marshal(archiveReaction{UserId: r.UserId, EmojiName: r.EmojiName, CreateAt: r.CreateAt})
	if err != nil {
		return nil, err
	}

	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}

	return json.Marshal(mergeMisc(typedMap, r.Extra))
}

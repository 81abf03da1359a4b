package model

import "encoding/json"

// Emoji is a custom server emoji, referenced by name from post reactions
// and inline `:name:` text. Standard unicode emoji never appear here.
type Emoji struct {
	Id        Id     `json:"id"`
	Name      string `json:"name"`
	CreatorId Id     `json:"creatorId,omitempty"`

	Extra Misc `json:"-"`
}

func (e Emoji) Equal(other Emoji) bool { return e.Id == other.Id }

type serverEmoji struct {
	Id        Id     `json:"id"`
	Name      string `json:"name"`
	CreatorId Id     `json:"creator_id"`
}

// EmojiFromServer builds an Emoji from the server's /emoji payload shape.
func EmojiFromServer(raw json.RawMessage) (Emoji, error) {
	var se serverEmoji
	if err := json.Unmarshal(raw, &se); err != nil {
		return Emoji{}, err
	}

	misc, err := consumeFields(raw, "id", "name", "creator_id", "create_at", "update_at", "delete_at")
	if err != nil {
		return Emoji{}, err
	}

	return Emoji{Id: se.Id, Name: se.Name, CreatorId: se.CreatorId, Extra: misc}, nil
}

type archiveEmoji struct {
	Id        Id     `json:"id"`
	Name      string `json:"name"`
	CreatorId Id     `json:"creatorId,omitempty"`
}

// EmojiFromArchive decodes an Emoji from its compact archive-format JSON.
func EmojiFromArchive(raw json.RawMessage) (Emoji, error) {
	var ae archiveEmoji
	if err := json.Unmarshal(raw, &ae); err != nil {
		return Emoji{}, err
	}

	misc, err := consumeFields(raw, "id", "name", "creatorId")
	if err != nil {
		return Emoji{}, err
	}

	return Emoji{Id: ae.Id, Name: ae.Name, CreatorId: ae.CreatorId, Extra: misc}, nil
}

// ToArchive encodes the Emoji into its compact archive-format JSON.
func (e Emoji) ToArchive() (json.RawMessage, error) {
	typed, err := json.Marshal(archiveEmoji{Id: e.Id, Name: e.Name, CreatorId: e.CreatorId})
	if err != nil {
		return nil, err
	}

	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}

	return json.Marshal(mergeMisc(typedMap, e.Extra))
}

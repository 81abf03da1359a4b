package model

import (
	"encoding/json"
	"strings"
)

// User is a server account, denormalized into every archive that
// references it (header.users) so each channel's files stay
// self-contained.
type User struct {
	Id        Id     `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsBot     bool   `json:"isBot,omitempty"`
	DeleteAt  Time   `json:"deleteAt,omitempty"`

	Extra Misc `json:"-"`
}

// Equal compares users by id only, per the entity-equality invariant.
func (u User) Equal(other User) bool { return u.Id == other.Id }

type serverUser struct {
	Id        Id     `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Roles     string `json:"roles"`
	DeleteAt  Time   `json:"delete_at"`
}

// UserFromServer strips server-only noise (password hashes, MFA
// secrets, auth_service, notify_props, and the like are never present
// in rawJson to begin with thanks to the server's own user-sanitizing,
// but session/props churn is dropped here too) and keeps only the
// fields the archive cares about.
func UserFromServer(raw json.RawMessage) (User, error) {
	var su serverUser
	if err := json.Unmarshal(raw, &su); err != nil {
		return User{}, err
	}

	misc, err := consumeFields(raw,
		"id", "username", "nickname", "first_name", "last_name",
		"roles", "delete_at", "create_at", "update_at", "email",
		"auth_service", "props", "notify_props", "last_password_update",
		"last_picture_update", "locale", "timezone", "password",
	)
	if err != nil {
		return User{}, err
	}

	return User{
		Id:        su.Id,
		Username:  su.Username,
		Nickname:  su.Nickname,
		FirstName: su.FirstName,
		LastName:  su.LastName,
		IsBot:     isBotRole(su.Roles),
		DeleteAt:  su.DeleteAt,
		Extra:     misc,
	}, nil
}

func isBotRole(roles string) bool {
	for _, w := range strings.Fields(roles) {
		if w == "system_user_bot" || w == "system_post_all_bot" {
			return true
		}
	}

	return false
}

type archiveUser struct {
	Id        Id     `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsBot     bool   `json:"isBot,omitempty"`
	DeleteAt  Time   `json:"deleteAt,omitempty"`
}

// UserFromArchive decodes a User from its compact archive-format JSON.
func UserFromArchive(raw json.RawMessage) (User, error) {
	var au archiveUser
	if err := json.Unmarshal(raw, &au); err != nil {
		return User{}, err
	}

	misc, err := consumeFields(raw, "id", "username", "nickname", "firstName", "lastName", "isBot", "deleteAt")
	if err != nil {
		return User{}, err
	}

	return User{
		Id:        au.Id,
		Username:  au.Username,
		Nickname:  au.Nickname,
		FirstName: au.FirstName,
		LastName:  au.LastName,
		IsBot:     au.IsBot,
		DeleteAt:  au.DeleteAt,
		Extra:     misc,
	}, nil
}

// ToArchive encodes the User into its compact archive-format JSON, with
// typed fields merged on top of any preserved misc fields.
func (u User) ToArchive() (json.RawMessage, error) {
	typed, err := json.Marshal(archiveUser{
		Id:        u.Id,
		Username:  u.Username,
		Nickname:  u.Nickname,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
		DeleteAt:  u.DeleteAt,
	})
	if err != nil {
		return nil, err
	}

	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}

	return json.Marshal(mergeMisc(typedMap, u.Extra))
}

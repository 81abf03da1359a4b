// Package cache is the entity cache: an in-memory, id-keyed store for
// Users, Teams, and Emojis that sits between the fetcher's per-post
// enrichment step and the server client. Without it, rendering a
// display name for every post's author would cost one HTTP round trip
// per post.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rakunlabs/mmarchive/internal/mm"
	"github.com/rakunlabs/mmarchive/internal/model"
)

// Cache is owned by a single server client and must not be shared
// across clients (spec §5's shared-resource policy).
type Cache struct {
	client *mm.Client

	users  map[model.Id]model.User
	teams  map[model.Id]model.Team
	emojis map[model.Id]model.Emoji

	// emojisLoaded tracks whether the full custom-emoji catalog has
	// already been paginated in, so a name-miss doesn't repaginate.
	emojisLoaded bool
}

func New(client *mm.Client) *Cache {
	return &Cache{
		client: client,
		users:  make(map[model.Id]model.User),
		teams:  make(map[model.Id]model.Team),
		emojis: make(map[model.Id]model.Emoji),
	}
}

// User returns the cached user for id, fetching and inserting it on
// miss.
func (c *Cache) User(ctx context.Context, id model.Id) (model.User, error) {
	if u, ok := c.users[id]; ok {
		return u, nil
	}

	raw, err := c.client.GetUser(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("cache: fetch user %s: %w", id, err)
	}

	u, err := model.UserFromServer(raw)
	if err != nil {
		return model.User{}, fmt.Errorf("cache: decode user %s: %w", id, err)
	}

	c.users[u.Id] = u

	return u, nil
}

// UserByUsername resolves a username to a User. It first scans the
// already-cached users (a linear scan, per spec §4.2 — this cache holds
// only the users looked up during one run, not the whole server), and
// falls back to one server fetch on miss.
func (c *Cache) UserByUsername(ctx context.Context, username string) (model.User, error) {
	for _, u := range c.users {
		if u.Username == username {
			return u, nil
		}
	}

	raw, err := c.client.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, fmt.Errorf("cache: fetch user %q: %w", username, err)
	}

	u, err := model.UserFromServer(raw)
	if err != nil {
		return model.User{}, fmt.Errorf("cache: decode user %q: %w", username, err)
	}

	c.users[u.Id] = u

	return u, nil
}

// PutUser inserts or overwrites a user already known by some other
// means (e.g. extracted from a channel-members page), avoiding a
// redundant fetch.
func (c *Cache) PutUser(u model.User) {
	c.users[u.Id] = u
}

// Team returns the cached team for id. Its Channels map is populated
// lazily the first time TeamChannels is called for this team, not by
// Team itself.
func (c *Cache) Team(ctx context.Context, userId, teamId model.Id) (model.Team, error) {
	if t, ok := c.teams[teamId]; ok {
		return t, nil
	}

	raws, err := c.client.GetUserTeams(ctx, userId)
	if err != nil {
		return model.Team{}, fmt.Errorf("cache: fetch teams for user %s: %w", userId, err)
	}

	var found model.Team

	for _, raw := range raws {
		t, err := model.TeamFromServer(raw)
		if err != nil {
			return model.Team{}, fmt.Errorf("cache: decode team: %w", err)
		}

		c.teams[t.Id] = t

		if t.Id == teamId {
			found = t
		}
	}

	if found.Id.Empty() {
		return model.Team{}, fmt.Errorf("cache: team %s not visible to user %s", teamId, userId)
	}

	return found, nil
}

// TeamChannels returns the team's channels, loading them from
// GET /users/{userId}/teams/{teamId}/channels exactly once and caching
// the result on the Team value held by the cache (spec §4.2).
func (c *Cache) TeamChannels(ctx context.Context, userId model.Id, team model.Team) (map[model.Id]model.Channel, error) {
	cached, ok := c.teams[team.Id]
	if ok && cached.Channels != nil {
		return cached.Channels, nil
	}

	raws, err := c.client.GetTeamChannels(ctx, userId, team.Id)
	if err != nil {
		return nil, fmt.Errorf("cache: fetch channels for team %s: %w", team.Id, err)
	}

	channels := make(map[model.Id]model.Channel, len(raws))

	for _, raw := range raws {
		ch, err := model.ChannelFromServer(raw)
		if err != nil {
			return nil, fmt.Errorf("cache: decode channel: %w", err)
		}

		channels[ch.Id] = ch
	}

	team.Channels = channels
	c.teams[team.Id] = team

	return channels, nil
}

// Emoji returns the cached emoji for id, fetching the full emoji
// catalog on first miss (the server has no single-emoji-by-id GET in
// this API surface; spec §6 lists only the page and image endpoints).
func (c *Cache) Emoji(ctx context.Context, id model.Id) (model.Emoji, bool, error) {
	if e, ok := c.emojis[id]; ok {
		return e, true, nil
	}

	if c.emojisLoaded {
		return model.Emoji{}, false, nil
	}

	if err := c.loadAllEmojis(ctx); err != nil {
		return model.Emoji{}, false, err
	}

	e, ok := c.emojis[id]

	return e, ok, nil
}

// PutEmoji inserts an emoji already known by some other means (e.g.
// extracted inline from a post's metadata).
func (c *Cache) PutEmoji(e model.Emoji) {
	c.emojis[e.Id] = e
}

const emojiPageSize = 200

func (c *Cache) loadAllEmojis(ctx context.Context) error {
	for page := 0; ; page++ {
		raws, err := c.client.GetEmojiPage(ctx, page, emojiPageSize)
		if err != nil {
			return fmt.Errorf("cache: fetch emoji page %s: %w", strconv.Itoa(page), err)
		}

		for _, raw := range raws {
			e, err := emojiFromServer(raw)
			if err != nil {
				return fmt.Errorf("cache: decode emoji: %w", err)
			}

			c.emojis[e.Id] = e
		}

		if len(raws) < emojiPageSize {
			break
		}
	}

	c.emojisLoaded = true

	return nil
}

func emojiFromServer(raw json.RawMessage) (model.Emoji, error) {
	return model.EmojiFromServer(raw)
}

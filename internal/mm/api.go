package mm

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rakunlabs/mmarchive/internal/model"
)

// PostsPage is the server's paginated post listing shape (spec §6): pages
// are always newest-first within `Order` regardless of the caller's
// intended traversal direction.
type PostsPage struct {
	Order      []model.Id                   `json:"order"`
	Posts      map[model.Id]json.RawMessage `json:"posts"`
	PrevPostId model.Id                     `json:"prev_post_id"`
	NextPostId model.Id                     `json:"next_post_id"`
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id model.Id) (json.RawMessage, error) {
	var raw json.RawMessage

	return raw, c.Get(ctx, "users/"+string(id), nil, &raw)
}

// GetMe fetches the authenticated user, via the server's "me" alias for
// GET users/{id}. The orchestrator uses this once per run to learn the
// locally-authenticated user's id and username, needed for direct- and
// group-channel filename stems (spec §6).
func (c *Client) GetMe(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage

	return raw, c.Get(ctx, "users/me", nil, &raw)
}

// GetUserByUsername fetches a user by username, used when the entity
// cache misses a name-based lookup.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (json.RawMessage, error) {
	var raw json.RawMessage

	return raw, c.Get(ctx, "users/username/"+username, nil, &raw)
}

// GetUserTeams enumerates the teams a user belongs to.
func (c *Client) GetUserTeams(ctx context.Context, userId model.Id) ([]json.RawMessage, error) {
	var raws []json.RawMessage

	return raws, c.Get(ctx, "users/"+string(userId)+"/teams", nil, &raws)
}

// GetTeamChannels enumerates the channels of one team visible to
// userId, via GET /users/{userId}/teams/{teamId}/channels — loaded once
// per team by the entity cache.
func (c *Client) GetTeamChannels(ctx context.Context, userId, teamId model.Id) ([]json.RawMessage, error) {
	var raws []json.RawMessage

	path := "users/" + string(userId) + "/teams/" + string(teamId) + "/channels"

	return raws, c.Get(ctx, path, nil, &raws)
}

// ChannelMembersPage is one page of GET /channels/{id}/members.
type ChannelMembersPage []struct {
	UserId model.Id `json:"user_id"`
}

// GetChannelMembers fetches one page of a channel's membership,
// used to resolve group-channel filename stems (spec §6, usernames
// joined with "-").
func (c *Client) GetChannelMembers(ctx context.Context, channelId model.Id, page, perPage int) (ChannelMembersPage, error) {
	var out ChannelMembersPage

	q := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}

	return out, c.Get(ctx, "channels/"+string(channelId)+"/members", q, &out)
}

const channelMembersPageSize = 200

// ListChannelMembers paginates GetChannelMembers to completion,
// returning every member id of channelId. Used once per direct/group
// channel to compute its filename stem (spec §6, SUPPLEMENTED
// FEATURES: "group-channel member resolution for filename stems").
func (c *Client) ListChannelMembers(ctx context.Context, channelId model.Id) ([]model.Id, error) {
	var ids []model.Id

	for page := 0; ; page++ {
		pg, err := c.GetChannelMembers(ctx, channelId, page, channelMembersPageSize)
		if err != nil {
			return nil, err
		}

		for _, m := range pg {
			ids = append(ids, m.UserId)
		}

		if len(pg) < channelMembersPageSize {
			return ids, nil
		}

		if err := c.Delay(ctx); err != nil {
			return nil, err
		}
	}
}

// GetChannel fetches a single channel by id.
func (c *Client) GetChannel(ctx context.Context, id model.Id) (json.RawMessage, error) {
	var raw json.RawMessage

	return raw, c.Get(ctx, "channels/"+string(id), nil, &raw)
}

// GetPost fetches a single post by id, used by the planner when it must
// resolve an afterPost/beforePost anchor to a time (spec §4.5 — a
// last-resort short-circuit miss).
func (c *Client) GetPost(ctx context.Context, id model.Id) (json.RawMessage, error) {
	var raw json.RawMessage

	return raw, c.Get(ctx, "posts/"+string(id), nil, &raw)
}

// GetChannelPosts issues one paginated posts fetch. query carries
// per_page/page/before/after exactly as the fetcher builds them.
func (c *Client) GetChannelPosts(ctx context.Context, channelId model.Id, query url.Values) (*PostsPage, error) {
	var page PostsPage

	if err := c.Get(ctx, "channels/"+string(channelId)+"/posts", query, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// GetEmojiPage fetches one page of custom emoji.
func (c *Client) GetEmojiPage(ctx context.Context, page, perPage int) ([]json.RawMessage, error) {
	var raws []json.RawMessage

	q := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}

	return raws, c.Get(ctx, "emoji", q, &raws)
}

package orchestrator

import (
	"context"
	"fmt"

	"github.com/rakunlabs/mmarchive/internal/config"
	"github.com/rakunlabs/mmarchive/internal/model"
)

// target is one resolved channel to process this run: its owning team
// (nil for Direct/Group channels) and its precomputed filename stem.
type target struct {
	team    *model.Team
	channel model.Channel
	stem    string
}

// teamChannel pairs a channel with whichever team's channel listing
// surfaced it, for locator matching and misc-flag gating.
type teamChannel struct {
	team    *model.Team
	channel model.Channel
}

// resolveTargets implements spec §4.7's locator resolution: enumerate
// every team the local user belongs to, enumerate each team's
// channels, then select channels either by explicit locator
// (id/display name/internal name, linear scan) or by the config's
// misc-inclusion flags. A locator that matches nothing produces a
// warning, never an error (spec §4.7).
func (o *Orchestrator) resolveTargets(ctx context.Context, report *Report) ([]target, error) {
	teamRaws, err := o.client.GetUserTeams(ctx, o.localUser.Id)
	if err != nil {
		return nil, fmt.Errorf("list teams for local user: %w", err)
	}

	teams := make([]model.Team, 0, len(teamRaws))

	for _, raw := range teamRaws {
		t, err := model.TeamFromServer(raw)
		if err != nil {
			return nil, fmt.Errorf("decode team: %w", err)
		}

		teams = append(teams, t)
	}

	resolvedTeamIds := map[model.Id]bool{}

	for _, loc := range o.cfg.Targets.Teams {
		idx := matchTeam(teams, loc)
		if idx < 0 {
			report.warn("", "team locator matched nothing: %s", describeLocator(loc))

			continue
		}

		resolvedTeamIds[teams[idx].Id] = true
	}

	teamSelected := func(id model.Id) bool {
		return resolvedTeamIds[id] || o.cfg.Targets.MiscTeams
	}

	// Enumerate every team's channels up front (spec §2 row 7:
	// "enumerate teams/channels"), so an explicit channel locator can
	// match a channel under a team that wasn't itself selected by a
	// team locator or the miscTeams flag.
	var pool []teamChannel

	for i := range teams {
		team := &teams[i]

		channels, err := o.cache.TeamChannels(ctx, o.localUser.Id, *team)
		if err != nil {
			return nil, fmt.Errorf("list channels for team %s: %w", team.Id, err)
		}

		for _, ch := range channels {
			pool = append(pool, teamChannel{team: team, channel: ch})
		}
	}

	seen := map[model.Id]bool{}

	var targets []target

	add := func(tc teamChannel) error {
		if seen[tc.channel.Id] {
			return nil
		}

		seen[tc.channel.Id] = true

		team := tc.team
		if tc.channel.Type == model.ChannelDirect || tc.channel.Type == model.ChannelGroup {
			team = nil
		}

		stem, err := o.stemFor(ctx, team, tc.channel)
		if err != nil {
			return fmt.Errorf("compute stem for channel %s: %w", tc.channel.Id, err)
		}

		targets = append(targets, target{team: team, channel: tc.channel, stem: stem})

		return nil
	}

	for _, loc := range o.cfg.Targets.Channels {
		idx := matchChannel(pool, loc)
		if idx < 0 {
			report.warn("", "channel locator matched nothing: %s", describeLocator(loc))

			continue
		}

		if err := add(pool[idx]); err != nil {
			return nil, err
		}
	}

	for _, tc := range pool {
		var include bool

		switch tc.channel.Type {
		case model.ChannelOpen:
			include = o.cfg.Targets.MiscPublicChannels && teamSelected(tc.channel.TeamId)
		case model.ChannelPrivate:
			include = o.cfg.Targets.MiscPrivateChannels && teamSelected(tc.channel.TeamId)
		case model.ChannelDirect:
			include = o.cfg.Targets.MiscDirectChannels
		case model.ChannelGroup:
			include = o.cfg.Targets.MiscGroupChannels
		}

		if !include {
			continue
		}

		if err := add(tc); err != nil {
			return nil, err
		}
	}

	return targets, nil
}

func describeLocator(loc config.Locator) string {
	switch {
	case loc.Id != "":
		return "id=" + loc.Id
	case loc.DisplayName != "":
		return "displayName=" + loc.DisplayName
	case loc.InternalName != "":
		return "internalName=" + loc.InternalName
	default:
		return "(empty locator)"
	}
}

func matchTeam(teams []model.Team, loc config.Locator) int {
	for i, t := range teams {
		if locatorMatches(loc, string(t.Id), t.DisplayName, t.Name) {
			return i
		}
	}

	return -1
}

func matchChannel(pool []teamChannel, loc config.Locator) int {
	for i, tc := range pool {
		if locatorMatches(loc, string(tc.channel.Id), tc.channel.DisplayName, tc.channel.Name) {
			return i
		}
	}

	return -1
}

func locatorMatches(loc config.Locator, id, displayName, internalName string) bool {
	switch {
	case loc.Id != "":
		return loc.Id == id
	case loc.DisplayName != "":
		return loc.DisplayName == displayName
	case loc.InternalName != "":
		return loc.InternalName == internalName
	default:
		return false
	}
}

// stemFor computes a channel's filename stem, resolving the
// direct-message peer or group-channel membership from the server
// when needed (spec §6).
func (o *Orchestrator) stemFor(ctx context.Context, team *model.Team, ch model.Channel) (string, error) {
	switch ch.Type {
	case model.ChannelDirect:
		a, b, ok := model.DirectChannelPeer(ch.Name)
		if !ok {
			return "", fmt.Errorf("direct channel %s has malformed internal name %q", ch.Id, ch.Name)
		}

		peer := a
		if a == o.localUser.Id {
			peer = b
		}

		peerUser, err := o.cache.User(ctx, peer)
		if err != nil {
			return "", err
		}

		return ch.Stem("", o.localUser.Username, nil, peerUser.Username), nil

	case model.ChannelGroup:
		memberIds, err := o.client.ListChannelMembers(ctx, ch.Id)
		if err != nil {
			return "", err
		}

		usernames := make([]string, 0, len(memberIds))

		for _, id := range memberIds {
			u, err := o.cache.User(ctx, id)
			if err != nil {
				return "", err
			}

			usernames = append(usernames, u.Username)
		}

		return ch.Stem("", "", usernames, ""), nil

	default:
		teamName := ""
		if team != nil {
			teamName = team.Name
		}

		return ch.Stem(teamName, "", nil, ""), nil
	}
}

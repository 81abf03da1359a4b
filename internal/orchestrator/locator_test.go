package orchestrator

import (
	"context"
	"testing"

	"github.com/rakunlabs/mmarchive/internal/cache"
	"github.com/rakunlabs/mmarchive/internal/config"
	"github.com/rakunlabs/mmarchive/internal/model"
)

func TestLocatorMatchesExactlyOneField(t *testing.T) {
	cases := []struct {
		loc  config.Locator
		id   string
		disp string
		name string
		want bool
	}{
		{config.Locator{Id: "c1"}, "c1", "General", "general", true},
		{config.Locator{Id: "c2"}, "c1", "General", "general", false},
		{config.Locator{DisplayName: "General"}, "c1", "General", "general", true},
		{config.Locator{InternalName: "general"}, "c1", "General", "general", true},
		{config.Locator{}, "c1", "General", "general", false},
	}

	for _, tc := range cases {
		if got := locatorMatches(tc.loc, tc.id, tc.disp, tc.name); got != tc.want {
			t.Errorf("locatorMatches(%+v) = %v, want %v", tc.loc, got, tc.want)
		}
	}
}

func TestMatchTeamLinearScan(t *testing.T) {
	teams := []model.Team{
		{Id: "t1", Name: "alpha", DisplayName: "Alpha"},
		{Id: "t2", Name: "beta", DisplayName: "Beta"},
	}

	if idx := matchTeam(teams, config.Locator{InternalName: "beta"}); idx != 1 {
		t.Fatalf("matchTeam by internal name = %d, want 1", idx)
	}

	if idx := matchTeam(teams, config.Locator{Id: "nope"}); idx != -1 {
		t.Fatalf("matchTeam for unknown id = %d, want -1", idx)
	}
}

func TestMatchChannelLinearScan(t *testing.T) {
	pool := []teamChannel{
		{channel: model.Channel{Id: "c1", Name: "general", DisplayName: "General"}},
		{channel: model.Channel{Id: "c2", Name: "random", DisplayName: "Random"}},
	}

	if idx := matchChannel(pool, config.Locator{DisplayName: "Random"}); idx != 1 {
		t.Fatalf("matchChannel by display name = %d, want 1", idx)
	}

	if idx := matchChannel(pool, config.Locator{Id: "missing"}); idx != -1 {
		t.Fatalf("matchChannel for unknown id = %d, want -1", idx)
	}
}

func TestStemForOpenChannelUsesTeamInternalName(t *testing.T) {
	o := &Orchestrator{cache: cache.New(nil), localUser: model.User{Id: "me", Username: "me"}}

	team := &model.Team{Id: "t1", Name: "myteam"}
	ch := model.Channel{Id: "c1", Type: model.ChannelOpen, Name: "general"}

	stem, err := o.stemFor(context.Background(), team, ch)
	if err != nil {
		t.Fatalf("stemFor: %v", err)
	}

	if stem != "o.myteam--general" {
		t.Fatalf("stem = %q, want o.myteam--general", stem)
	}
}

func TestStemForDirectChannelResolvesPeerFromCache(t *testing.T) {
	c := cache.New(nil)
	c.PutUser(model.User{Id: "bob", Username: "bob"})

	o := &Orchestrator{cache: c, localUser: model.User{Id: "alice", Username: "alice"}}

	ch := model.Channel{Id: "d1", Type: model.ChannelDirect, Name: model.DirectChannelName("alice", "bob")}

	stem, err := o.stemFor(context.Background(), nil, ch)
	if err != nil {
		t.Fatalf("stemFor: %v", err)
	}

	if stem != "d.alice--bob" {
		t.Fatalf("stem = %q, want d.alice--bob", stem)
	}
}

func TestStemForDirectChannelRejectsMalformedName(t *testing.T) {
	o := &Orchestrator{cache: cache.New(nil), localUser: model.User{Id: "alice", Username: "alice"}}

	ch := model.Channel{Id: "d1", Type: model.ChannelDirect, Name: "not-a-direct-name"}

	if _, err := o.stemFor(context.Background(), nil, ch); err == nil {
		t.Fatal("expected an error for a malformed direct-channel name")
	}
}

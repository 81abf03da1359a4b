package model

import (
	"encoding/json"
	"testing"
)

func TestDirectChannelNameIsLexicographicallyAscending(t *testing.T) {
	name := DirectChannelName("userB", "userA")

	if name != "userA__userB" {
		t.Fatalf("expected userA__userB, got %q", name)
	}

	a, b, ok := DirectChannelPeer(name)
	if !ok {
		t.Fatalf("expected DirectChannelPeer to parse %q", name)
	}

	if a != "userA" || b != "userB" {
		t.Fatalf("expected (userA, userB), got (%s, %s)", a, b)
	}
}

func TestDirectChannelPeerRejectsMalformedNames(t *testing.T) {
	if _, _, ok := DirectChannelPeer("not-a-direct-channel"); ok {
		t.Fatal("expected ok=false for a name without exactly one __ separator")
	}

	if _, _, ok := DirectChannelPeer("a__b__c"); ok {
		t.Fatal("expected ok=false for a name with more than two parts")
	}
}

func TestUnknownChannelTypeDegradesToOpen(t *testing.T) {
	if got := channelTypeFromTag("X"); got != ChannelOpen {
		t.Fatalf("expected unknown tag to degrade to Open, got %v", got)
	}
}

func TestChannelFromServerKeepsLastMessageTime(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"id": "c1", "type": "O", "name": "general", "last_post_at": 1500,
	})

	ch, err := ChannelFromServer(raw)
	if err != nil {
		t.Fatalf("ChannelFromServer: %v", err)
	}

	if ch.LastMessageTime != 1500 {
		t.Fatalf("LastMessageTime = %d, want 1500", ch.LastMessageTime)
	}
}

func TestChannelStemByType(t *testing.T) {
	open := Channel{Type: ChannelOpen, Name: "general"}
	if got := open.Stem("myteam", "", nil, ""); got != "o.myteam--general" {
		t.Fatalf("open stem = %q", got)
	}

	priv := Channel{Type: ChannelPrivate, Name: "secret"}
	if got := priv.Stem("myteam", "", nil, ""); got != "p.myteam--secret" {
		t.Fatalf("private stem = %q", got)
	}

	direct := Channel{Type: ChannelDirect}
	if got := direct.Stem("", "alice", nil, "bob"); got != "d.alice--bob" {
		t.Fatalf("direct stem = %q", got)
	}

	group := Channel{Type: ChannelGroup}
	if got := group.Stem("", "", []string{"carol", "alice", "bob"}, ""); got != "g.alice-bob-carol" {
		t.Fatalf("group stem = %q", got)
	}
}

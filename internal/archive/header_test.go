package archive

import (
	"testing"

	"github.com/rakunlabs/mmarchive/internal/model"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	before := model.Id("p0")

	h := ChannelHeader{
		Version: "0",
		Team:    &model.Team{Id: "t1", Name: "team-one"},
		Channel: model.Channel{Id: "c1", Type: model.ChannelOpen, Name: "general"},
		Storage: &PostStorage{
			Count: 1, Organization: AscendingContinuous,
			FirstPostId: "p1", LastPostId: "p1",
			BeginTime: 100, EndTime: 100,
			PostIdBeforeFirst: &before,
		},
		Users:  []model.User{{Id: "u1", Username: "alice"}},
		Emojis: []model.Emoji{{Id: "e1", Name: "smile"}},
	}

	encoded, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}

	if decoded.Version != "0" || decoded.Channel.Id != "c1" {
		t.Fatalf("decoded = %+v", decoded)
	}

	if decoded.Team == nil || decoded.Team.Id != "t1" {
		t.Fatalf("decoded team = %+v", decoded.Team)
	}

	if len(decoded.Users) != 1 || decoded.Users[0].Username != "alice" {
		t.Fatalf("decoded users = %+v", decoded.Users)
	}

	if decoded.Storage == nil || decoded.Storage.PostIdBeforeFirst == nil || *decoded.Storage.PostIdBeforeFirst != "p0" {
		t.Fatalf("decoded storage = %+v", decoded.Storage)
	}
}

func TestHeaderEncodeOmitsAbsentTeamAndStorage(t *testing.T) {
	h := ChannelHeader{Version: "0", Channel: model.Channel{Id: "c1"}}

	encoded, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}

	if decoded.Team != nil {
		t.Fatalf("expected nil team, got %+v", decoded.Team)
	}

	if decoded.Storage != nil {
		t.Fatalf("expected nil storage, got %+v", decoded.Storage)
	}
}

func TestAddUserAndAddEmojiDedupe(t *testing.T) {
	var h ChannelHeader

	h.AddUser(model.User{Id: "u1", Username: "alice"})
	h.AddUser(model.User{Id: "u1", Username: "alice"})
	h.AddEmoji(model.Emoji{Id: "e1", Name: "smile"})
	h.AddEmoji(model.Emoji{Id: "e1", Name: "smile"})

	if len(h.Users) != 1 {
		t.Fatalf("users = %v, want 1 entry", h.Users)
	}

	if len(h.Emojis) != 1 {
		t.Fatalf("emojis = %v, want 1 entry", h.Emojis)
	}
}

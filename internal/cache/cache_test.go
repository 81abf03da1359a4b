package cache

import (
	"testing"

	"github.com/rakunlabs/mmarchive/internal/model"
)

func TestPutUserThenUserByUsernameHitsNoFetch(t *testing.T) {
	c := New(nil)

	c.PutUser(model.User{Id: "u1", Username: "alice"})

	u, err := c.UserByUsername(nil, "alice") //nolint:staticcheck // nil ctx never reaches the client on a cache hit
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}

	if u.Id != "u1" {
		t.Fatalf("got id %q, want u1", u.Id)
	}
}

func TestPutEmojiThenEmojiHitsNoFetch(t *testing.T) {
	c := New(nil)

	c.PutEmoji(model.Emoji{Id: "e1", Name: "smile"})

	e, ok, err := c.Emoji(nil, "e1") //nolint:staticcheck
	if err != nil {
		t.Fatalf("Emoji: %v", err)
	}

	if !ok {
		t.Fatal("expected emoji hit")
	}

	if e.Name != "smile" {
		t.Fatalf("got name %q, want smile", e.Name)
	}
}

func TestUserDirectHitByIdSkipsFetch(t *testing.T) {
	c := New(nil)

	c.users["u1"] = model.User{Id: "u1", Username: "bob"}

	u, err := c.User(nil, "u1") //nolint:staticcheck
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	if u.Username != "bob" {
		t.Fatalf("got username %q, want bob", u.Username)
	}
}

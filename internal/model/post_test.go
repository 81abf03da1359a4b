package model

import (
	"encoding/json"
	"testing"
)

func TestPostFromServerCollapsesNoOpUpdate(t *testing.T) {
	raw := []byte(`{"id":"p1","channel_id":"c1","user_id":"u1","message":"hi","create_at":100,"update_at":100,"edit_at":0}`)

	p, _, err := PostFromServer(raw)
	if err != nil {
		t.Fatalf("PostFromServer: %v", err)
	}

	if p.UpdateTime != nil {
		t.Fatalf("expected nil UpdateTime when update_at == create_at, got %v", *p.UpdateTime)
	}
}

func TestPostFromServerKeepsRealUpdate(t *testing.T) {
	raw := []byte(`{"id":"p1","channel_id":"c1","user_id":"u1","message":"hi","create_at":100,"update_at":200}`)

	p, _, err := PostFromServer(raw)
	if err != nil {
		t.Fatalf("PostFromServer: %v", err)
	}

	if p.UpdateTime == nil || *p.UpdateTime != 200 {
		t.Fatalf("expected UpdateTime 200, got %v", p.UpdateTime)
	}

	if !(*p.UpdateTime > p.CreateTime) {
		t.Fatalf("invariant violated: UpdateTime must be strictly greater than CreateTime")
	}
}

func TestPostFromServerExtractsEmojis(t *testing.T) {
	raw := []byte(`{
		"id":"p1","channel_id":"c1","user_id":"u1","message":":tada: nice","create_at":100,
		"metadata":{"emojis":[{"id":"e1","name":"tada"}]}
	}`)

	p, emojis, err := PostFromServer(raw)
	if err != nil {
		t.Fatalf("PostFromServer: %v", err)
	}

	if len(emojis) != 1 || emojis[0].Id != "e1" {
		t.Fatalf("expected one extracted emoji e1, got %+v", emojis)
	}

	if len(p.EmojiIds) != 1 || p.EmojiIds[0] != "e1" {
		t.Fatalf("expected post.EmojiIds == [e1], got %v", p.EmojiIds)
	}
}

func TestPostRoundTripLaw(t *testing.T) {
	raw := []byte(`{
		"id":"p1","channel_id":"c1","user_id":"u1","message":"hello","create_at":100,"update_at":250,
		"metadata":{
			"files":[{"id":"f1","name":"a.png","mime_type":"image/png","size":10}],
			"reactions":[{"user_id":"u2","emoji_name":"thumbsup","create_at":150}],
			"emojis":[{"id":"e1","name":"thumbsup"}]
		},
		"some_future_field": {"nested": true}
	}`)

	direct, _, err := PostFromServer(raw)
	if err != nil {
		t.Fatalf("PostFromServer: %v", err)
	}

	archived, err := direct.ToArchive()
	if err != nil {
		t.Fatalf("ToArchive: %v", err)
	}

	viaArchive, err := PostFromArchive(archived)
	if err != nil {
		t.Fatalf("PostFromArchive: %v", err)
	}

	if !direct.Equal(viaArchive) {
		t.Fatalf("round trip changed identity: %+v vs %+v", direct, viaArchive)
	}

	if direct.Message != viaArchive.Message || direct.CreateTime != viaArchive.CreateTime {
		t.Fatalf("round trip lost typed fields: %+v vs %+v", direct, viaArchive)
	}

	if len(direct.Files) != len(viaArchive.Files) || len(direct.Reactions) != len(viaArchive.Reactions) {
		t.Fatalf("round trip lost sub-entities: %+v vs %+v", direct, viaArchive)
	}

	var misc map[string]json.RawMessage
	if err := json.Unmarshal(archived, &misc); err != nil {
		t.Fatalf("unmarshal archived: %v", err)
	}

	if _, ok := misc["some_future_field"]; !ok {
		t.Fatalf("unknown field was not preserved in misc bag: %s", archived)
	}
}

package archive

import (
	"testing"

	"github.com/rakunlabs/mmarchive/internal/fetch"
	"github.com/rakunlabs/mmarchive/internal/model"
)

func post(id model.Id, createAt int64) model.Post {
	return model.Post{Id: id, CreateTime: model.FromUnixMilli(createAt)}
}

// TestAddSortedPostFreshAscending mirrors spec.md §8 scenario 1.
func TestAddSortedPostFreshAscending(t *testing.T) {
	var s PostStorage

	s.AddSortedPost(post("p1", 100), fetch.Hints{PostIdBefore: "", PostIdAfter: "p2"}, fetch.Asc)
	s.AddSortedPost(post("p2", 200), fetch.Hints{PostIdBefore: "p1", PostIdAfter: "p3"}, fetch.Asc)
	s.AddSortedPost(post("p3", 300), fetch.Hints{PostIdBefore: "p2", PostIdAfter: ""}, fetch.Asc)

	if s.Count != 3 {
		t.Fatalf("count = %d, want 3", s.Count)
	}

	if s.Organization != AscendingContinuous {
		t.Fatalf("organization = %s, want AscendingContinuous", s.Organization)
	}

	if s.FirstPostId != "p1" || s.LastPostId != "p3" {
		t.Fatalf("first/last = %s/%s, want p1/p3", s.FirstPostId, s.LastPostId)
	}

	if s.BeginTime != 100 || s.EndTime != 300 {
		t.Fatalf("begin/end = %d/%d, want 100/300", s.BeginTime, s.EndTime)
	}

	if s.PostIdBeforeFirst != nil {
		t.Fatalf("postIdBeforeFirst = %v, want nil", s.PostIdBeforeFirst)
	}

	if s.PostIdAfterLast != nil {
		t.Fatalf("postIdAfterLast = %v, want nil", s.PostIdAfterLast)
	}
}

// TestExtendAppendsTwoNewPosts mirrors spec.md §8 scenario 3.
func TestExtendAppendsTwoNewPosts(t *testing.T) {
	existing := PostStorage{
		Count: 3, Organization: AscendingContinuous, ByteSize: 60,
		FirstPostId: "p1", BeginTime: 100, LastPostId: "p3", EndTime: 300,
	}

	var fresh PostStorage

	fresh.AddSortedPost(post("p4", 400), fetch.Hints{PostIdBefore: "p3", PostIdAfter: "p5"}, fetch.Asc)
	fresh.AddSortedPost(post("p5", 500), fetch.Hints{PostIdBefore: "p4", PostIdAfter: ""}, fetch.Asc)
	fresh.ByteSize = 100

	if err := existing.Extend(fresh); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	if existing.Count != 5 {
		t.Fatalf("count = %d, want 5", existing.Count)
	}

	if existing.LastPostId != "p5" || existing.EndTime != 500 {
		t.Fatalf("last/end = %s/%d, want p5/500", existing.LastPostId, existing.EndTime)
	}

	if existing.ByteSize != 100 {
		t.Fatalf("byteSize = %d, want 100", existing.ByteSize)
	}

	if existing.FirstPostId != "p1" || existing.BeginTime != 100 {
		t.Fatalf("first/begin changed: %s/%d", existing.FirstPostId, existing.BeginTime)
	}
}

func TestExtendRejectsNonAdjacent(t *testing.T) {
	existing := PostStorage{Count: 1, Organization: AscendingContinuous, LastPostId: "p3"}

	var fresh PostStorage
	fresh.AddSortedPost(post("p9", 900), fetch.Hints{PostIdBefore: "not-p3"}, fetch.Asc)

	if err := existing.Extend(fresh); err == nil {
		t.Fatal("expected error extending non-adjacent storage")
	}
}

func TestExtendEmptyIsNoop(t *testing.T) {
	existing := PostStorage{Count: 3, Organization: AscendingContinuous, LastPostId: "p3", EndTime: 300}

	if err := existing.Extend(PostStorage{}); err != nil {
		t.Fatalf("Extend with empty: %v", err)
	}

	if existing.Count != 3 || existing.LastPostId != "p3" {
		t.Fatal("empty extend should not change existing storage")
	}
}

func TestValidateRejectsUnknownVersion(t *testing.T) {
	h := ChannelHeader{Version: "7", Channel: model.Channel{Id: "c1"}}

	if err := Validate(h); err == nil {
		t.Fatal("expected error for unrecognized version")
	}
}

func TestValidateAllowsEmptyChannelHeader(t *testing.T) {
	h := ChannelHeader{Version: "0", Channel: model.Channel{Id: "c1"}}

	if err := Validate(h); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsDescendingTimeOrderMismatch(t *testing.T) {
	h := ChannelHeader{
		Version: "0",
		Channel: model.Channel{Id: "c1"},
		Storage: &PostStorage{
			Count: 2, Organization: AscendingContinuous,
			FirstPostId: "p1", LastPostId: "p2",
			BeginTime: 300, EndTime: 100,
		},
	}

	if err := Validate(h); err == nil {
		t.Fatal("expected error for beginTime after endTime in ascending storage")
	}
}

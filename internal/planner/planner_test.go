package planner

import (
	"context"
	"testing"

	"github.com/rakunlabs/mmarchive/internal/archive"
	"github.com/rakunlabs/mmarchive/internal/fetch"
	"github.com/rakunlabs/mmarchive/internal/model"
)

// fakeResolver resolves post ids to times from a fixed map; it fails
// the test if the planner asks for a post it has no short-circuit for.
type fakeResolver struct {
	t     *testing.T
	times map[model.Id]model.Time
}

func (r fakeResolver) ResolvePostTime(_ context.Context, id model.Id) (model.Time, error) {
	v, ok := r.times[id]
	if !ok {
		r.t.Fatalf("unexpected ResolvePostTime(%s)", id)
	}

	return v, nil
}

func timePtr(t model.Time) *model.Time { return &t }

// TestPlanFreshAscendingDownload mirrors spec.md §8 scenario 1: no
// previous archive, ascending, unlimited — a pure from-scratch fetch
// of the request's own filters.
func TestPlanFreshAscendingDownload(t *testing.T) {
	req := Request{Direction: fetch.Asc, PostLimit: -1, PostSessionLimit: -1}

	d, err := Plan(context.Background(), req, fakeResolver{t: t}, nil, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d == nil || !d.FromScratch {
		t.Fatalf("expected a from-scratch decision, got %+v", d)
	}

	if d.Filters.Direction != fetch.Asc {
		t.Fatalf("direction = %v, want Asc", d.Filters.Direction)
	}
}

// TestPlanNoNewPostsIsIdempotent mirrors spec.md §8 scenario 2: the
// archive already reaches both channel origin and the server's current
// last-message time, so there is nothing to do.
func TestPlanNoNewPostsIsIdempotent(t *testing.T) {
	header := &archive.ChannelHeader{
		Storage: &archive.PostStorage{
			Count: 3, Organization: archive.AscendingContinuous,
			FirstPostId: "p1", BeginTime: 100,
			LastPostId: "p3", EndTime: 300,
		},
	}

	req := Request{Direction: fetch.Asc, PostLimit: -1, PostSessionLimit: -1}
	lastMsg := timePtr(300)

	d, err := Plan(context.Background(), req, fakeResolver{t: t}, header, lastMsg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d != nil {
		t.Fatalf("expected nothing-to-do, got %+v", d)
	}
}

// TestPlanAppendsTwoNewPosts mirrors spec.md §8 scenario 3: the server
// reports messages newer than the archive's recorded end, so the
// planner appends starting from the archive's own last post.
func TestPlanAppendsTwoNewPosts(t *testing.T) {
	header := &archive.ChannelHeader{
		Storage: &archive.PostStorage{
			Count: 3, Organization: archive.AscendingContinuous,
			FirstPostId: "p1", BeginTime: 100,
			LastPostId: "p3", EndTime: 300,
		},
	}

	req := Request{Direction: fetch.Asc, PostLimit: -1, PostSessionLimit: -1}
	lastMsg := timePtr(500)

	d, err := Plan(context.Background(), req, fakeResolver{t: t}, header, lastMsg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d == nil || d.FromScratch {
		t.Fatalf("expected an append decision, got %+v", d)
	}

	if d.Filters.AfterPost != "p3" || d.Filters.AfterTime == nil || *d.Filters.AfterTime != 300 {
		t.Fatalf("unexpected append anchor: %+v", d.Filters)
	}
}

// TestPlanDirectionChangeForcesFromScratch mirrors spec.md §8 scenario
// 4: an archive built descending can't serve an ascending request —
// the organization itself disqualifies it as a prefix.
func TestPlanDirectionChangeForcesFromScratch(t *testing.T) {
	header := &archive.ChannelHeader{
		Storage: &archive.PostStorage{
			Count: 3, Organization: archive.DescendingContinuous,
			FirstPostId: "p3", BeginTime: 300,
			LastPostId: "p1", EndTime: 100,
		},
	}

	req := Request{Direction: fetch.Asc, PostLimit: -1, PostSessionLimit: -1}

	d, err := Plan(context.Background(), req, fakeResolver{t: t}, header, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d == nil || !d.FromScratch {
		t.Fatalf("expected a from-scratch decision on organization mismatch, got %+v", d)
	}
}

// TestPlanPostLimitCapsSessionSize mirrors spec.md §8 scenario 5: an
// append session is capped so the archive never exceeds postLimit,
// even when postSessionLimit alone would allow more.
func TestPlanPostLimitCapsSessionSize(t *testing.T) {
	header := &archive.ChannelHeader{
		Storage: &archive.PostStorage{
			Count: 8, Organization: archive.AscendingContinuous,
			FirstPostId: "p1", BeginTime: 100,
			LastPostId: "p8", EndTime: 800,
		},
	}

	req := Request{Direction: fetch.Asc, PostLimit: 10, PostSessionLimit: 50}
	lastMsg := timePtr(1200)

	d, err := Plan(context.Background(), req, fakeResolver{t: t}, header, lastMsg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d == nil || d.FromScratch {
		t.Fatalf("expected an append decision, got %+v", d)
	}

	if d.Filters.MaxCount != 2 {
		t.Fatalf("maxCount = %d, want 2 (postLimit 10 - archive count 8)", d.Filters.MaxCount)
	}
}

// TestPlanPostLimitAlreadySatisfiedYieldsZeroMaxCount covers the
// boundary of scenario 5: once the archive already holds postLimit
// posts, the session the planner allows is capped to zero — fetch's
// MaxCount=0 short-circuit means no post is actually retained.
func TestPlanPostLimitAlreadySatisfiedYieldsZeroMaxCount(t *testing.T) {
	header := &archive.ChannelHeader{
		Storage: &archive.PostStorage{
			Count: 10, Organization: archive.AscendingContinuous,
			FirstPostId: "p1", BeginTime: 100,
			LastPostId: "p10", EndTime: 1000,
		},
	}

	req := Request{Direction: fetch.Asc, PostLimit: 10, PostSessionLimit: -1}
	lastMsg := timePtr(2000)

	d, err := Plan(context.Background(), req, fakeResolver{t: t}, header, lastMsg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d == nil {
		t.Fatal("expected a decision (even a zero-MaxCount one), got nil")
	}

	if d.Filters.MaxCount != 0 {
		t.Fatalf("maxCount = %d, want 0 once postLimit is already reached", d.Filters.MaxCount)
	}
}

// TestPlanRequestOlderThanArchiveForcesFromScratch mirrors spec.md §8
// scenario 6: a request whose start predates the archive's own
// recorded start, on an archive that doesn't already reach channel
// origin, can't be served by appending — only a redownload covers it.
func TestPlanRequestOlderThanArchiveForcesFromScratch(t *testing.T) {
	before := model.Id("p0")
	header := &archive.ChannelHeader{
		Storage: &archive.PostStorage{
			Count: 3, Organization: archive.AscendingContinuous,
			FirstPostId: "p1", BeginTime: 100,
			LastPostId: "p3", EndTime: 300,
			PostIdBeforeFirst: &before,
		},
	}

	early := model.FromUnixMilli(50)
	req := Request{Direction: fetch.Asc, AfterTime: &early, PostLimit: -1, PostSessionLimit: -1}

	d, err := Plan(context.Background(), req, fakeResolver{t: t}, header, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d == nil || !d.FromScratch {
		t.Fatalf("expected a from-scratch decision, got %+v", d)
	}
}

// TestPlanResolvesAfterPostAnchorOnlyWhenNecessary ensures the
// planner short-circuits against the archive's own recorded boundary
// ids before ever calling the resolver (spec §4.5).
func TestPlanResolvesAfterPostAnchorOnlyWhenNecessary(t *testing.T) {
	header := &archive.ChannelHeader{
		Storage: &archive.PostStorage{
			Count: 3, Organization: archive.AscendingContinuous,
			FirstPostId: "p1", BeginTime: 100,
			LastPostId: "p3", EndTime: 300,
		},
	}

	req := Request{Direction: fetch.Asc, AfterPost: "p3", PostLimit: -1, PostSessionLimit: -1}
	lastMsg := timePtr(300)

	// fakeResolver has no entries; any ResolvePostTime call fails the test.
	d, err := Plan(context.Background(), req, fakeResolver{t: t, times: map[model.Id]model.Time{}}, header, lastMsg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if d != nil {
		t.Fatalf("expected nothing-to-do, got %+v", d)
	}
}

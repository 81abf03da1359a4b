// Package planner is the decision core: a pure function that
// reconciles a download request against a previously-persisted archive
// and the server's current last-message time, deciding between
// nothing-to-do, append, or redownload-from-scratch (spec §4.5).
package planner

import (
	"context"
	"fmt"

	"github.com/rakunlabs/mmarchive/internal/archive"
	"github.com/rakunlabs/mmarchive/internal/fetch"
	"github.com/rakunlabs/mmarchive/internal/model"
)

// Request is the caller's download intent, before reconciliation
// against any existing archive.
type Request struct {
	Direction fetch.Direction

	AfterTime  *model.Time
	AfterPost  model.Id
	BeforeTime *model.Time
	BeforePost model.Id

	PostLimit        int // -1 = unlimited
	PostSessionLimit int // -1 = unlimited
}

// Decision is the planner's non-nil output: exactly the fetch
// parameters needed to extend the archive.
type Decision struct {
	FromScratch bool
	Filters     fetch.Filters
}

// PostResolver resolves an anchor post id to its create time, used
// only when boundary ids don't already short-circuit the comparison
// (spec §4.5: "must not resolve afterPost/beforePost to a time unless
// necessary").
type PostResolver interface {
	ResolvePostTime(ctx context.Context, id model.Id) (model.Time, error)
}

// Plan decides what, if anything, needs to be downloaded. header is
// nil when there is no previous archive. lastChannelMessageTime is the
// server's current last-post time for the channel (nil for an empty
// channel). A nil *Decision means nothing to do.
func Plan(ctx context.Context, req Request, resolver PostResolver, header *archive.ChannelHeader, lastChannelMessageTime *model.Time) (*Decision, error) {
	if req.Direction == fetch.Desc {
		return planDescending(ctx, req, resolver, header, lastChannelMessageTime)
	}

	return planAscending(ctx, req, resolver, header, lastChannelMessageTime)
}

// effectiveBound resolves one bound of the request to a time: of t and
// postId's create time, the later when pickLater is set and the earlier
// otherwise, or nil if neither is set.
func effectiveBound(ctx context.Context, resolver PostResolver, t *model.Time, postId model.Id, knownBoundaries map[model.Id]model.Time, pickLater bool) (*model.Time, error) {
	var postTime *model.Time

	if !postId.Empty() {
		if known, ok := knownBoundaries[postId]; ok {
			postTime = &known
		} else {
			resolved, err := resolver.ResolvePostTime(ctx, postId)
			if err != nil {
				return nil, fmt.Errorf("planner: resolve post %s: %w", postId, err)
			}

			postTime = &resolved
		}
	}

	switch {
	case t == nil:
		return postTime, nil
	case postTime == nil:
		return t, nil
	case pickLater:
		if postTime.After(*t) {
			return postTime, nil
		}

		return t, nil
	default:
		if postTime.Before(*t) {
			return postTime, nil
		}

		return t, nil
	}
}

func planAscending(ctx context.Context, req Request, resolver PostResolver, header *archive.ChannelHeader, lastChannelMessageTime *model.Time) (*Decision, error) {
	if header == nil || header.Storage == nil || header.Storage.Count == 0 {
		return fromScratchDecision(req), nil
	}

	s := header.Storage

	if s.Organization != archive.AscendingContinuous {
		return fromScratchDecision(req), nil
	}

	boundaries := map[model.Id]model.Time{s.FirstPostId: s.BeginTime, s.LastPostId: s.EndTime}

	start, err := effectiveBound(ctx, resolver, req.AfterTime, req.AfterPost, boundaries, true)
	if err != nil {
		return nil, err
	}

	end, err := effectiveBound(ctx, resolver, req.BeforeTime, req.BeforePost, boundaries, false)
	if err != nil {
		return nil, err
	}

	archiveStartsAtOrigin := s.PostIdBeforeFirst == nil

	// Rule 1: request starts strictly before the archive and the
	// archive itself doesn't start at channel origin.
	if start != nil && start.Before(s.BeginTime) && !archiveStartsAtOrigin {
		return fromScratchDecision(req), nil
	}

	if start == nil && !archiveStartsAtOrigin {
		// Requesting from channel origin, but archive doesn't reach it.
		return fromScratchDecision(req), nil
	}

	// Rule 2: request's end is before the archive's start.
	if end != nil && end.Before(s.BeginTime) {
		return fromScratchDecision(req), nil
	}

	// Rule 4: archive is a prefix of the request.
	isPrefix := (start != nil && (req.AfterPost == s.FirstPostId || req.AfterPost == s.LastPostId ||
		(sameAsNilablePtr(s.PostIdBeforeFirst, req.AfterPost)) ||
		(!start.Before(s.BeginTime) && !start.After(s.EndTime)))) ||
		(start == nil && archiveStartsAtOrigin)

	if isPrefix {
		if end != nil {
			if !end.After(s.EndTime) {
				return nil, nil // nothing to do: request's end is already covered
			}
		} else if s.PostIdAfterLast == nil && lastChannelMessageTime != nil && !lastChannelMessageTime.After(s.EndTime) {
			return nil, nil // nothing to do: archive already reaches the channel's current end
		}

		return &Decision{
			FromScratch: false,
			Filters: fetch.Filters{
				AfterPost:  s.LastPostId,
				AfterTime:  timePtr(s.EndTime),
				BeforePost: req.BeforePost,
				BeforeTime: req.BeforeTime,
				Direction:  fetch.Asc,
				MaxCount:   sessionMaxCount(req, s.Count),
			},
		}, nil
	}

	// Rule 5: post limit already satisfied.
	if req.PostLimit > 0 && s.Count >= req.PostLimit {
		return nil, nil
	}

	// Rule 6: archive already reaches channel end and the server
	// reports no newer messages.
	if s.PostIdAfterLast == nil && lastChannelMessageTime != nil && !lastChannelMessageTime.After(s.EndTime) {
		return nil, nil
	}

	return &Decision{
		FromScratch: false,
		Filters: fetch.Filters{
			AfterPost:  s.LastPostId,
			AfterTime:  timePtr(s.EndTime),
			BeforePost: req.BeforePost,
			BeforeTime: req.BeforeTime,
			Direction:  fetch.Asc,
			MaxCount:   sessionMaxCount(req, s.Count),
		},
	}, nil
}

func planDescending(ctx context.Context, req Request, resolver PostResolver, header *archive.ChannelHeader, lastChannelMessageTime *model.Time) (*Decision, error) {
	if header == nil || header.Storage == nil || header.Storage.Count == 0 {
		return fromScratchDecision(req), nil
	}

	s := header.Storage

	if s.Organization != archive.DescendingContinuous {
		return fromScratchDecision(req), nil
	}

	boundaries := map[model.Id]model.Time{s.FirstPostId: s.BeginTime, s.LastPostId: s.EndTime}

	// Mirrored: for descending, "start" is the newest bound
	// (beforeTime/beforePost) and "end" is the oldest bound
	// (afterTime/afterPost); the archive's "start" is its newest edge
	// (BeginTime, since descending storage runs newest-to-oldest).
	start, err := effectiveBound(ctx, resolver, req.BeforeTime, req.BeforePost, boundaries, false)
	if err != nil {
		return nil, err
	}

	end, err := effectiveBound(ctx, resolver, req.AfterTime, req.AfterPost, boundaries, true)
	if err != nil {
		return nil, err
	}

	archiveStartsAtOrigin := s.PostIdBeforeFirst == nil

	if start != nil && start.After(s.BeginTime) && !archiveStartsAtOrigin {
		return fromScratchDecision(req), nil
	}

	if start == nil && !archiveStartsAtOrigin {
		return fromScratchDecision(req), nil
	}

	if end != nil && end.After(s.BeginTime) {
		return fromScratchDecision(req), nil
	}

	isPrefix := (start != nil && (req.BeforePost == s.FirstPostId || req.BeforePost == s.LastPostId ||
		sameAsNilablePtr(s.PostIdBeforeFirst, req.BeforePost) ||
		(!start.After(s.BeginTime) && !start.Before(s.EndTime)))) ||
		(start == nil && archiveStartsAtOrigin)

	if isPrefix {
		if end != nil {
			if !end.Before(s.EndTime) {
				return nil, nil
			}
		} else if s.PostIdAfterLast == nil && lastChannelMessageTime != nil && !lastChannelMessageTime.Before(s.EndTime) {
			return nil, nil // nothing to do: archive already reaches the channel's current (oldest) end
		}

		return &Decision{
			FromScratch: false,
			Filters: fetch.Filters{
				BeforePost: s.LastPostId,
				BeforeTime: timePtr(s.EndTime),
				AfterPost:  req.AfterPost,
				AfterTime:  req.AfterTime,
				Direction:  fetch.Desc,
				MaxCount:   sessionMaxCount(req, s.Count),
			},
		}, nil
	}

	if req.PostLimit > 0 && s.Count >= req.PostLimit {
		return nil, nil
	}

	if s.PostIdAfterLast == nil && lastChannelMessageTime != nil && !lastChannelMessageTime.Before(s.EndTime) {
		return nil, nil
	}

	return &Decision{
		FromScratch: false,
		Filters: fetch.Filters{
			BeforePost: s.LastPostId,
			BeforeTime: timePtr(s.EndTime),
			AfterPost:  req.AfterPost,
			AfterTime:  req.AfterTime,
			Direction:  fetch.Desc,
			MaxCount:   sessionMaxCount(req, s.Count),
		},
	}, nil
}

func fromScratchDecision(req Request) *Decision {
	maxCount := req.PostSessionLimit
	if req.PostLimit >= 0 && (maxCount < 0 || req.PostLimit < maxCount) {
		maxCount = req.PostLimit
	}

	return &Decision{
		FromScratch: true,
		Filters: fetch.Filters{
			AfterPost:  req.AfterPost,
			AfterTime:  req.AfterTime,
			BeforePost: req.BeforePost,
			BeforeTime: req.BeforeTime,
			Direction:  req.Direction,
			MaxCount:   maxCount,
		},
	}
}

// sessionMaxCount implements the post-limit handling under append
// (spec §4.5): maxCount = min(postLimit - archive.count,
// postSessionLimit), with -1 treated as unlimited.
func sessionMaxCount(req Request, archiveCount int) int {
	remaining := -1
	if req.PostLimit >= 0 {
		remaining = req.PostLimit - archiveCount
		if remaining < 0 {
			remaining = 0
		}
	}

	if req.PostSessionLimit >= 0 && (remaining < 0 || req.PostSessionLimit < remaining) {
		remaining = req.PostSessionLimit
	}

	return remaining
}

func timePtr(t model.Time) *model.Time { return &t }

func sameAsNilablePtr(ptr *model.Id, id model.Id) bool {
	if ptr == nil {
		return false
	}

	return *ptr == id
}

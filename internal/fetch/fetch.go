// Package fetch drives the paginated post endpoint: the hot loop that
// walks a channel's history in either time direction, applies filters,
// and hands retained posts to a caller-supplied processor one at a
// time with channel-order neighbor hints.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rakunlabs/mmarchive/internal/mm"
	"github.com/rakunlabs/mmarchive/internal/model"
)

// Direction selects which way a fetch walks channel history.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Result reports why ProcessPosts stopped.
type Result string

const (
	NothingRequested Result = "NothingRequested"
	NoMorePosts      Result = "NoMorePosts"
	MaxCountReached  Result = "MaxCountReached"
	ConditionReached Result = "ConditionReached"
)

// Hints carries the channel-order neighbors of the post currently being
// processed, so the archive header can record postIdBeforeFirst /
// postIdAfterLast without a second pass over the data.
type Hints struct {
	ProcessedCount int
	PostIdBefore   model.Id
	PostIdAfter    model.Id
}

// Filters bounds and orders a fetch. MaxCount and Offset of -1 and 0
// respectively mean "unlimited" / "no offset". OnSkippedPost, if set,
// is invoked for posts that fall before the range's effective start
// instead of being handed to the processor. OnEmoji, if set, is
// invoked once per custom emoji object embedded in a post's metadata —
// this is additive surfacing beyond the single (post, hints) processor
// contract, since the full Emoji objects belong in the archive header,
// not duplicated per post (see model.PostFromServer).
type Filters struct {
	BeforePost model.Id
	AfterPost  model.Id
	BeforeTime *model.Time
	AfterTime  *model.Time

	BufferSize int
	MaxCount   int
	Offset     int

	Direction Direction

	OnSkippedPost func(post model.Post, hints Hints)
	OnEmoji       func(model.Emoji)
}

// Processor receives each retained post along with its channel-order
// neighbor hints, in strict traversal order.
type Processor func(post model.Post, hints Hints) error

// Source is the subset of the server client ProcessPosts needs. It is
// satisfied by *mm.Client; the seam exists so the hot loop can be
// tested against a fake without a network.
type Source interface {
	GetChannelPosts(ctx context.Context, channelId model.Id, query url.Values) (*mm.PostsPage, error)
	GetPost(ctx context.Context, id model.Id) (json.RawMessage, error)
	Delay(ctx context.Context) error
}

// ProcessPosts walks channel's posts per filters, invoking processor
// for each retained one. messageCount is the channel's approximate
// total_msg_count, used only to seed the ascending-no-anchor offset
// resolution (spec §4.3, §9 — the server never corrects this value for
// deletions, so it is always an upper bound).
func ProcessPosts(ctx context.Context, source Source, channelId model.Id, messageCount int64, filters Filters, processor Processor) (Result, error) {
	if filters.AfterTime != nil && filters.BeforeTime != nil && filters.AfterTime.After(*filters.BeforeTime) {
		return NothingRequested, nil
	}

	bufferSize := filters.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}

	page, pageOffset, err := resolveStart(ctx, source, channelId, messageCount, filters, bufferSize)
	if err != nil {
		return "", fmt.Errorf("fetch: resolve start: %w", err)
	}

	var (
		usingCursor  bool
		beforeCursor model.Id
		afterCursor  model.Id
		firstPage    = true
		processed    = 0
	)

	for {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(bufferSize))

		if usingCursor {
			if filters.Direction == Desc && !beforeCursor.Empty() {
				query.Set("before", string(beforeCursor))
			}
			if filters.Direction == Asc && !afterCursor.Empty() {
				query.Set("after", string(afterCursor))
			}
		} else {
			// The very first, page-addressed request still has to carry an
			// explicit anchor: without it the server returns the channel's
			// newest window regardless of where the archive left off.
			query.Set("page", strconv.Itoa(page))

			if filters.Direction == Asc && !filters.AfterPost.Empty() {
				query.Set("after", string(filters.AfterPost))
			}
			if filters.Direction == Desc && !filters.BeforePost.Empty() {
				query.Set("before", string(filters.BeforePost))
			}
		}

		pg, err := source.GetChannelPosts(ctx, channelId, query)
		if err != nil {
			return "", fmt.Errorf("fetch: get channel posts: %w", err)
		}

		// Approximate-count correction (spec §9): the estimated last
		// page can overshoot once deletions are accounted for. An
		// empty page this early means we haven't reached real history
		// yet — back off one page and retry, rather than stopping.
		if len(pg.Order) == 0 && filters.Direction == Asc && filters.AfterPost.Empty() && !usingCursor && page != 0 {
			page--

			continue
		}

		indices := iterationIndices(pg.Order, filters.Direction)
		skip := 0

		if firstPage && !usingCursor {
			skip = pageOffset
		}

		for pos, i := range indices {
			if pos < skip {
				continue
			}

			id := pg.Order[i]

			post, emojis, err := model.PostFromServer(pg.Posts[id])
			if err != nil {
				return "", fmt.Errorf("fetch: decode post %s: %w", id, err)
			}

			hints := Hints{
				ProcessedCount: processed,
				PostIdBefore:   olderNeighbor(pg, i),
				PostIdAfter:    newerNeighbor(pg, i),
			}

			if (!filters.AfterPost.Empty() && post.Id == filters.AfterPost) ||
				(!filters.BeforePost.Empty() && post.Id == filters.BeforePost) {
				return ConditionReached, nil
			}

			if timeCrossed(post.CreateTime, filters) {
				return ConditionReached, nil
			}

			if filters.MaxCount >= 0 && processed == filters.MaxCount {
				return MaxCountReached, nil
			}

			if preRange(post.CreateTime, filters) {
				if filters.OnSkippedPost != nil {
					filters.OnSkippedPost(post, hints)
				}

				continue
			}

			if filters.OnEmoji != nil {
				for _, e := range emojis {
					filters.OnEmoji(e)
				}
			}

			if err := processor(post, hints); err != nil {
				return "", err
			}

			processed++
		}

		firstPage = false

		var next model.Id
		if filters.Direction == Desc {
			next = pg.PrevPostId
		} else {
			next = pg.NextPostId
		}

		if next.Empty() {
			return NoMorePosts, nil
		}

		usingCursor = true
		if filters.Direction == Desc {
			beforeCursor = next
		} else {
			afterCursor = next
		}

		if err := source.Delay(ctx); err != nil {
			return "", err
		}
	}
}

// resolveStart computes the initial page and in-page offset per
// spec §4.3.
func resolveStart(ctx context.Context, source Source, channelId model.Id, messageCount int64, filters Filters, bufferSize int) (int, int, error) {
	if filters.Direction == Desc || (filters.Direction == Asc && !filters.AfterPost.Empty()) {
		return filters.Offset / bufferSize, filters.Offset % bufferSize, nil
	}

	// Ascending with no afterPost anchor: total_msg_count is an upper
	// bound, so the guessed last page may still have older history
	// beyond it. Walk forward until a page reports no prev_post_id.
	//
	// TODO: the sources' descending branch computes this via a running
	// sum of page index and returned order length (absoluteMessageOffset),
	// while (at least one version of) the ascending branch instead
	// decrements on an empty final page, as done here. Whether the two
	// are equivalent across the full input domain isn't established by
	// the sources available; preserved as-is rather than guessed at.
	page := int(messageCount / int64(bufferSize))
	if page < 0 {
		page = 0
	}

	for {
		q := url.Values{"per_page": {strconv.Itoa(bufferSize)}, "page": {strconv.Itoa(page)}}

		pg, err := source.GetChannelPosts(ctx, channelId, q)
		if err != nil {
			return 0, 0, err
		}

		if pg.PrevPostId.Empty() {
			break
		}

		page++
	}

	page -= filters.Offset / bufferSize
	if page < 0 {
		page = 0
	}

	return page, filters.Offset % bufferSize, nil
}

func iterationIndices(order []model.Id, dir Direction) []int {
	n := len(order)
	idx := make([]int, n)

	if dir == Desc {
		for i := range idx {
			idx[i] = i
		}

		return idx
	}

	for i := range idx {
		idx[i] = n - 1 - i
	}

	return idx
}

func olderNeighbor(pg *mm.PostsPage, i int) model.Id {
	if i+1 < len(pg.Order) {
		return pg.Order[i+1]
	}

	return pg.PrevPostId
}

func newerNeighbor(pg *mm.PostsPage, i int) model.Id {
	if i > 0 {
		return pg.Order[i-1]
	}

	return pg.NextPostId
}

func timeCrossed(t model.Time, f Filters) bool {
	if f.Direction == Asc {
		return f.BeforeTime != nil && t.After(*f.BeforeTime)
	}

	return f.AfterTime != nil && t.Before(*f.AfterTime)
}

func preRange(t model.Time, f Filters) bool {
	if f.Direction == Asc {
		return f.AfterTime != nil && t.Before(*f.AfterTime)
	}

	return f.BeforeTime != nil && t.After(*f.BeforeTime)
}

// Package archive is the archive store: the on-disk format for one
// channel's downloaded history (a header file plus a newline-delimited
// data file), and the in-memory PostStorage bookkeeping that tracks a
// contiguous interval of that history as it grows.
package archive

import (
	"fmt"

	"github.com/rakunlabs/mmarchive/internal/fetch"
	"github.com/rakunlabs/mmarchive/internal/model"
)

// Organization describes the ordering of posts in a channel's data
// file. Continuous variants are the only kind the core ever writes;
// Unsorted/Ascending/Descending exist to describe archives the core
// can load but does not itself produce (e.g. hand-edited or from an
// older tool).
type Organization string

const (
	Unsorted             Organization = "Unsorted"
	Ascending            Organization = "Ascending"
	Descending           Organization = "Descending"
	AscendingContinuous  Organization = "AscendingContinuous"
	DescendingContinuous Organization = "DescendingContinuous"
)

// PostStorage is the header's record of what has been downloaded: a
// single contiguous interval of channel history, when Organization is
// one of the Continuous variants.
type PostStorage struct {
	Count        int          `json:"count"`
	Organization Organization `json:"organization"`
	ByteSize     int64        `json:"byteSize"`

	FirstPostId model.Id   `json:"firstPostId,omitempty"`
	BeginTime   model.Time `json:"beginTime,omitempty"`
	LastPostId  model.Id   `json:"lastPostId,omitempty"`
	EndTime     model.Time `json:"endTime,omitempty"`

	// PostIdBeforeFirst/PostIdAfterLast are nil when this archive's
	// first/last post is also the channel's true first/last post; a
	// non-nil id means there is a post beyond our interval with that id.
	PostIdBeforeFirst *model.Id `json:"postIdBeforeFirst,omitempty"`
	PostIdAfterLast   *model.Id `json:"postIdAfterLast,omitempty"`
}

// direction reports which traversal direction this storage's
// organization implies, used to pick the matching addSortedPost
// bookkeeping. Only meaningful for the Continuous variants.
func (o Organization) direction() fetch.Direction {
	if o == DescendingContinuous || o == Descending {
		return fetch.Desc
	}

	return fetch.Asc
}

// AddSortedPost folds one newly-fetched post into the storage,
// preconditioned on storage already being Continuous in dir and post
// being strictly further in dir than anything already added (spec
// §4.4, named addSortedPost there). The very first call sets
// PostIdBeforeFirst from the post's channel-order predecessor (Asc) or
// successor (Desc); every call updates PostIdAfterLast (the opposite
// neighbor) and the boundary time/id fields.
func (s *PostStorage) AddSortedPost(post model.Post, hints fetch.Hints, dir fetch.Direction) {
	leadingNeighbor, trailingNeighbor := hints.PostIdBefore, hints.PostIdAfter
	if dir == fetch.Desc {
		leadingNeighbor, trailingNeighbor = hints.PostIdAfter, hints.PostIdBefore
	}

	if s.Count == 0 {
		s.Organization = continuousFor(dir)
		s.FirstPostId = post.Id
		s.BeginTime = post.CreateTime

		if !leadingNeighbor.Empty() {
			id := leadingNeighbor
			s.PostIdBeforeFirst = &id
		} else {
			s.PostIdBeforeFirst = nil
		}
	}

	s.LastPostId = post.Id
	s.EndTime = post.CreateTime

	if !trailingNeighbor.Empty() {
		id := trailingNeighbor
		s.PostIdAfterLast = &id
	} else {
		s.PostIdAfterLast = nil
	}

	s.Count++
}

func continuousFor(dir fetch.Direction) Organization {
	if dir == fetch.Desc {
		return DescendingContinuous
	}

	return AscendingContinuous
}

// Extend merges a freshly-appended storage (other) into s, in place
// (spec §4.4, named update there). Precondition: both share
// Organization, and other is adjacent to s — s.LastPostId ==
// other.PostIdBeforeFirst — except when other.Count==0, in which case
// Extend is a no-op regardless of adjacency (spec §9: the sources
// disagree on whether the adjacency assertion applies to an empty
// extension; the conservative no-op is preserved here rather than
// guessed at).
func (s *PostStorage) Extend(other PostStorage) error {
	if other.Count == 0 {
		return nil
	}

	if s.Count == 0 {
		*s = other

		return nil
	}

	if s.Organization != other.Organization {
		return fmt.Errorf("archive: extend: organization mismatch (%s vs %s)", s.Organization, other.Organization)
	}

	if !idsEqual(other.PostIdBeforeFirst, &s.LastPostId) {
		return fmt.Errorf("archive: extend: not adjacent (last=%s, newBeforeFirst=%v)", s.LastPostId, other.PostIdBeforeFirst)
	}

	s.Count += other.Count
	s.ByteSize = other.ByteSize
	s.LastPostId = other.LastPostId
	s.EndTime = other.EndTime
	s.PostIdAfterLast = other.PostIdAfterLast

	return nil
}

func idsEqual(ptr *model.Id, want *model.Id) bool {
	if ptr == nil {
		return false
	}

	return *ptr == *want
}

// Package catalog is the archiver's optional operational ledger: one
// row per channel processed by a run, independent of and never
// consulted by the planner (spec.md's planner purity law, §8, is
// unaffected — the catalog is purely observational). The archive
// itself is always just the two flat files per channel described in
// spec.md §3; the catalog exists so an operator can inspect run
// history across many scheduled invocations without re-reading every
// header file.
package catalog

import (
	"context"
	"time"
)

// Result is the outcome the orchestrator recorded for one channel in
// one run.
type Result string

const (
	ResultDownloaded  Result = "Downloaded"
	ResultNothingToDo Result = "NothingToDo"
	ResultSkipped     Result = "Skipped"
	ResultFailed      Result = "Failed"
)

// Run is one row of the catalog: what happened to one channel during
// one invocation of the archiver.
type Run struct {
	Id          string
	RunId       string // ULID shared by every channel processed in one invocation
	TeamId      string
	ChannelId   string
	ChannelStem string
	Result      Result
	FromScratch bool
	PostsAdded  int
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Storer is the catalog's storage seam, implemented by
// internal/catalog/sqlite3 and internal/catalog/postgres. A nil Storer
// (the catalog disabled entirely, config.Catalog.Driver == "") is
// handled by the orchestrator, not by a null-object implementation
// here — RecordRun is always called from a context that already knows
// whether a catalog is configured.
type Storer interface {
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LatestRunForChannel(ctx context.Context, channelId string) (*Run, error)
	Close() error
}

package orchestrator

import (
	"context"
	"fmt"

	"github.com/rakunlabs/mmarchive/internal/archive"
	"github.com/rakunlabs/mmarchive/internal/model"
	"github.com/rakunlabs/mmarchive/internal/planner"
)

// PlanResult is one channel's computed decision under --dry-run: what
// Run would do without actually doing it.
type PlanResult struct {
	ChannelStem string
	Decision    *planner.Decision // nil means nothing to do
	Error       string
}

// Plan authenticates, resolves targets exactly as Run does, then runs
// the identical planner call per channel without backing up, fetching,
// or writing anything (SPEC_FULL.md's "--dry-run planning mode").
func (o *Orchestrator) Plan(ctx context.Context) ([]PlanResult, error) {
	if err := o.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: authenticate: %w", err)
	}

	var report Report

	targets, err := o.resolveTargets(ctx, &report)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve targets: %w", err)
	}

	dir := o.cfg.Output.Directory
	resolver := postResolver{o}

	results := make([]PlanResult, 0, len(targets))

	for _, t := range targets {
		header, existed, err := archive.LoadHeader(dir, t.stem)

		var headerPtr *archive.ChannelHeader
		if err == nil && existed {
			headerPtr = &header
		}

		var lastMsgTime *model.Time
		if t.channel.LastMessageTime != model.Zero {
			lmt := t.channel.LastMessageTime
			lastMsgTime = &lmt
		}

		req := o.requestFor(t.channel)

		decision, planErr := planner.Plan(ctx, req, resolver, headerPtr, lastMsgTime)
		if err != nil {
			planErr = fmt.Errorf("load header: %w", err)
		}

		res := PlanResult{ChannelStem: t.stem, Decision: decision}
		if planErr != nil {
			res.Error = planErr.Error()
		}

		results = append(results, res)
	}

	return results, nil
}

// Package orchestrator is the top-level flow: log in, enumerate
// teams/channels, resolve locators, apply the planner per channel, run
// the fetcher, drive backup/restore around each channel's processing,
// and finalize the header (spec §2 row 7, §4.7). It is the one package
// that is allowed to perform I/O against the filesystem, the server,
// and (optionally) the run catalog — every package it calls is a pure
// or narrowly-scoped collaborator.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/mmarchive/internal/cache"
	"github.com/rakunlabs/mmarchive/internal/catalog"
	"github.com/rakunlabs/mmarchive/internal/config"
	"github.com/rakunlabs/mmarchive/internal/mm"
	"github.com/rakunlabs/mmarchive/internal/model"
	"github.com/rakunlabs/mmarchive/internal/recovery"
	"github.com/rakunlabs/mmarchive/internal/tokencache"
)

// Warning is one non-fatal event accumulated over a run: a team or
// channel locator that matched nothing, or a channel whose processing
// failed. Collected alongside inline logging, per the original's
// warnings-list behavior (SPEC_FULL.md's SUPPLEMENTED FEATURES).
// Unknown enum tags that internal/model degrades are only logged there,
// not collected here.
type Warning struct {
	ChannelStem string
	Message     string
}

// Report is Run's return value: a summary of everything the run did,
// independent of whatever also landed in the catalog.
type Report struct {
	RunId    string
	Results  []catalog.Run
	Warnings []Warning
}

func (r *Report) warn(stem, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, Warning{ChannelStem: stem, Message: msg})
	slog.Warn("mmarchive: "+msg, "stem", stem)
}

// Orchestrator holds everything a run needs: the authenticated server
// client and its entity cache, the resolved configuration, the
// recovery arbiter, and an optional catalog store for run history.
type Orchestrator struct {
	client  *mm.Client
	cache   *cache.Cache
	cfg     *config.Config
	arbiter recovery.Arbiter
	store   catalog.Storer // nil disables the catalog entirely

	localUser model.User
}

// New builds an Orchestrator. client must not yet be authenticated —
// Run performs login (or token-cache restore) itself, exactly once,
// as the first step of its top-level flow. store may be nil to disable
// the run catalog.
func New(client *mm.Client, cfg *config.Config, arbiter recovery.Arbiter, store catalog.Storer) *Orchestrator {
	return &Orchestrator{
		client:  client,
		cache:   cache.New(client),
		cfg:     cfg,
		arbiter: arbiter,
		store:   store,
	}
}

// Run executes the full archival flow against every resolved channel,
// in channel order, one at a time (spec §5's single-threaded
// cooperative scheduling). It returns a non-nil error only for a
// run-fatal condition (spec §7's Authentication/Configuration kinds);
// a single channel's Transport failure is caught, logged, cataloged,
// and does not stop the run.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	report := Report{RunId: ulid.Make().String()}

	if err := o.authenticate(ctx); err != nil {
		return report, fmt.Errorf("orchestrator: authenticate: %w", err)
	}

	targets, err := o.resolveTargets(ctx, &report)
	if err != nil {
		return report, fmt.Errorf("orchestrator: resolve targets: %w", err)
	}

	for _, t := range targets {
		if ctx.Err() != nil {
			slog.Warn("mmarchive: run canceled, stopping before next channel", "stem", t.stem)

			break
		}

		runLog := slog.With("run_id", report.RunId, "channel_id", string(t.channel.Id), "stem", t.stem)
		cctx := logi.WithContext(ctx, runLog)

		run := o.processChannel(cctx, report.RunId, t)
		report.Results = append(report.Results, run)

		if run.Result == catalog.ResultFailed {
			report.warn(t.stem, "channel failed: %s", run.Error)
		}

		if o.store != nil {
			if err := o.store.RecordRun(ctx, run); err != nil {
				slog.Error("mmarchive: failed to record catalog run", "stem", t.stem, "error", err)
			}
		}
	}

	slog.Info("mmarchive: run complete", "run_id", report.RunId, "channels", len(report.Results), "warnings", len(report.Warnings))

	return report, nil
}

// authenticate resolves the bearer token: a configured access token is
// used directly; otherwise a cached token (if enabled) is tried first
// and validated with one GetMe call, falling back to a fresh
// username/password login on any miss or rejection.
func (o *Orchestrator) authenticate(ctx context.Context) error {
	conn := o.cfg.Connection

	if conn.AccessToken != "" {
		o.client.SetToken(conn.AccessToken)

		return o.loadLocalUser(ctx)
	}

	if o.cfg.TokenCache.Enabled {
		if cached, err := tokencache.Load(o.cfg.Output.Directory, o.cfg.TokenCache.Key); err == nil && cached != "" {
			o.client.SetToken(cached)

			if err := o.loadLocalUser(ctx); err == nil {
				return nil
			}

			if err := tokencache.Clear(o.cfg.Output.Directory); err != nil {
				slog.Warn("mmarchive: failed to clear stale token cache", "error", err)
			}
		}
	}

	if err := o.client.Login(ctx, conn.Username, conn.Password); err != nil {
		return err
	}

	if o.cfg.TokenCache.Enabled {
		if err := tokencache.Save(o.cfg.Output.Directory, o.cfg.TokenCache.Key, o.client.Token()); err != nil {
			slog.Warn("mmarchive: failed to save token cache", "error", err)
		}
	}

	return o.loadLocalUser(ctx)
}

func (o *Orchestrator) loadLocalUser(ctx context.Context) error {
	raw, err := o.client.GetMe(ctx)
	if err != nil {
		return err
	}

	u, err := model.UserFromServer(raw)
	if err != nil {
		return fmt.Errorf("decode authenticated user: %w", err)
	}

	o.localUser = u
	o.cache.PutUser(u)

	return nil
}

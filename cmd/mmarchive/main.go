package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/mmarchive/internal/catalog"
	"github.com/rakunlabs/mmarchive/internal/catalog/postgres"
	"github.com/rakunlabs/mmarchive/internal/catalog/sqlite3"
	"github.com/rakunlabs/mmarchive/internal/config"
	"github.com/rakunlabs/mmarchive/internal/mm"
	"github.com/rakunlabs/mmarchive/internal/orchestrator"
	"github.com/rakunlabs/mmarchive/internal/recovery"
)

var (
	name    = "mmarchive"
	version = "v0.0.0"
)

func main() {
	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	if len(os.Args) > 1 && os.Args[1] == "catalog" {
		return runCatalog(ctx, os.Args[2:])
	}

	dryRun := false

	for _, a := range os.Args[1:] {
		if a == "--dry-run" {
			dryRun = true
		}
	}

	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := mm.New(cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to build server client: %w", err)
	}

	overrides, err := recovery.OverridesFromConfig(cfg.Recovery)
	if err != nil {
		return fmt.Errorf("invalid recovery configuration: %w", err)
	}

	arbiter := recovery.New(overrides)

	if dryRun {
		results, err := orchestrator.New(client, cfg, arbiter, nil).Plan(ctx)
		if err != nil {
			return fmt.Errorf("plan failed: %w", err)
		}

		for _, r := range results {
			switch {
			case r.Error != "":
				slog.Error("mmarchive: plan failed", "stem", r.ChannelStem, "error", r.Error)
			case r.Decision == nil:
				slog.Info("mmarchive: plan", "stem", r.ChannelStem, "action", "nothing-to-do")
			default:
				slog.Info("mmarchive: plan", "stem", r.ChannelStem, "fromScratch", r.Decision.FromScratch,
					"direction", r.Decision.Filters.Direction, "maxCount", r.Decision.Filters.MaxCount)
			}
		}

		return nil
	}

	store, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	if store != nil {
		defer store.Close()
	}

	report, err := orchestrator.New(client, cfg, arbiter, store).Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	slog.Info("mmarchive: done", "run_id", report.RunId, "channels", len(report.Results), "warnings", len(report.Warnings))

	failed := 0

	for _, r := range report.Results {
		if r.Result == catalog.ResultFailed {
			slog.Error("mmarchive: channel failed", "stem", r.ChannelStem, "error", r.Error)

			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d channel(s) failed", failed)
	}

	return nil
}

// openCatalog builds the configured catalog.Storer, or returns a nil
// Storer (not an error) when cfg.Driver is empty — the archive itself
// never depends on the catalog (spec's catalog description).
func openCatalog(ctx context.Context, cfg config.Catalog) (catalog.Storer, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("catalog.driver is sqlite but catalog.sqlite is not configured")
		}

		return sqlite3.New(ctx, sqlite3.Config{Datasource: cfg.SQLite.Datasource, TablePrefix: cfg.SQLite.TablePrefix})
	case "postgres":
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("catalog.driver is postgres but catalog.postgres is not configured")
		}

		return postgres.New(ctx, postgres.Config{Datasource: cfg.Postgres.Datasource, TablePrefix: cfg.Postgres.TablePrefix})
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}

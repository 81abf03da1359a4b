package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rakunlabs/mmarchive/internal/catalog"
	"github.com/rakunlabs/mmarchive/internal/config"
)

// runCatalog implements the "mmarchive catalog" subcommand: list recent
// run history, or show the latest run for one channel, reading the
// same config.Catalog settings the main run uses.
func runCatalog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	limit := fs.Int("limit", 20, "number of recent runs to list")
	channelId := fs.String("channel", "", "show only the latest run for this channel id")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	if store == nil {
		return fmt.Errorf("catalog is not configured (catalog.driver is empty)")
	}

	defer store.Close()

	if *channelId != "" {
		r, err := store.LatestRunForChannel(ctx, *channelId)
		if err != nil {
			return err
		}

		if r == nil {
			fmt.Printf("no runs recorded for channel %s\n", *channelId)

			return nil
		}

		printRun(*r)

		return nil
	}

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}

	for _, r := range runs {
		printRun(r)
	}

	return nil
}

func printRun(r catalog.Run) {
	fmt.Printf("%s  %-12s %-30s %-11s posts=%-5d scratch=%-5v %s\n",
		r.StartedAt.Format("2006-01-02 15:04:05"), r.RunId, r.ChannelStem, r.Result, r.PostsAdded, r.FromScratch, r.Error)
}

// Package sqlite3 is the SQLite-backed internal/catalog.Storer,
// adapted from the teacher's internal/store/sqlite3 package: the same
// goqu.Database query-builder idiom, the same muz-driven migration
// bookkeeping, the same single-writer connection-pool discipline
// (SQLite tolerates exactly one writer at a time).
package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rakunlabs/mmarchive/internal/catalog"
)

var DefaultTablePrefix = "mmarchive_"

type SQLite struct {
	db   *sql.DB
	goqu *goqu.Database

	tableRuns exp.IdentifierExpression
}

// Config is the minimal sqlite3 catalog configuration, mirrored from
// internal/config.CatalogSQLite.
type Config struct {
	Datasource  string
	TablePrefix *string
}

func New(ctx context.Context, cfg Config) (*SQLite, error) {
	if cfg.Datasource == "" {
		return nil, errors.New("catalog sqlite datasource is required")
	}

	tablePrefix := DefaultTablePrefix
	if cfg.TablePrefix != nil {
		tablePrefix = *cfg.TablePrefix
	}

	if err := migrateDB(ctx, cfg.Datasource, tablePrefix+"migrations", map[string]string{"TABLE_PREFIX": tablePrefix}); err != nil {
		return nil, fmt.Errorf("migrate catalog sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open catalog sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("ping catalog sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()

		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	// SQLite is single-writer; the catalog writes once per channel per
	// run, never concurrently (spec §5's single-threaded archiver).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	slog.Info("connected to catalog sqlite")

	return &SQLite{
		db:        db,
		goqu:      goqu.New("sqlite3", db),
		tableRuns: goqu.T(tablePrefix + "runs"),
	}, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *SQLite) RecordRun(ctx context.Context, run catalog.Run) error {
	id := run.Id
	if id == "" {
		id = ulid.Make().String()
	}

	query, _, err := s.goqu.Insert(s.tableRuns).Rows(goqu.Record{
		"id":           id,
		"run_id":       run.RunId,
		"team_id":      run.TeamId,
		"channel_id":   run.ChannelId,
		"channel_stem": run.ChannelStem,
		"result":       string(run.Result),
		"from_scratch": run.FromScratch,
		"posts_added":  run.PostsAdded,
		"error":        run.Error,
		"started_at":   run.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":  run.FinishedAt.UTC().Format(time.RFC3339Nano),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert run query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("record run for channel %s: %w", run.ChannelId, err)
	}

	return nil
}

type runRow struct {
	Id          string
	RunId       string
	TeamId      string
	ChannelId   string
	ChannelStem string
	Result      string
	FromScratch bool
	PostsAdded  int
	Error       string
	StartedAt   string
	FinishedAt  string
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]catalog.Run, error) {
	q := s.goqu.From(s.tableRuns).
		Select("id", "run_id", "team_id", "channel_id", "channel_stem", "result", "from_scratch", "posts_added", "error", "started_at", "finished_at").
		Order(goqu.I("finished_at").Desc())

	if limit > 0 {
		q = q.Limit(uint(limit))
	}

	query, _, err := q.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list runs query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []catalog.Run

	for rows.Next() {
		var r runRow
		if err := rows.Scan(&r.Id, &r.RunId, &r.TeamId, &r.ChannelId, &r.ChannelStem, &r.Result, &r.FromScratch, &r.PostsAdded, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		run, err := rowToRun(r)
		if err != nil {
			return nil, err
		}

		out = append(out, run)
	}

	return out, rows.Err()
}

func (s *SQLite) LatestRunForChannel(ctx context.Context, channelId string) (*catalog.Run, error) {
	query, _, err := s.goqu.From(s.tableRuns).
		Select("id", "run_id", "team_id", "channel_id", "channel_stem", "result", "from_scratch", "posts_added", "error", "started_at", "finished_at").
		Where(goqu.I("channel_id").Eq(channelId)).
		Order(goqu.I("finished_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build latest run query: %w", err)
	}

	var r runRow

	err = s.db.QueryRowContext(ctx, query).Scan(&r.Id, &r.RunId, &r.TeamId, &r.ChannelId, &r.ChannelStem, &r.Result, &r.FromScratch, &r.PostsAdded, &r.Error, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("latest run for channel %s: %w", channelId, err)
	}

	run, err := rowToRun(r)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func rowToRun(r runRow) (catalog.Run, error) {
	started, err := time.Parse(time.RFC3339Nano, r.StartedAt)
	if err != nil {
		return catalog.Run{}, fmt.Errorf("parse started_at: %w", err)
	}

	finished, err := time.Parse(time.RFC3339Nano, r.FinishedAt)
	if err != nil {
		return catalog.Run{}, fmt.Errorf("parse finished_at: %w", err)
	}

	return catalog.Run{
		Id: r.Id, RunId: r.RunId, TeamId: r.TeamId, ChannelId: r.ChannelId, ChannelStem: r.ChannelStem,
		Result: catalog.Result(r.Result), FromScratch: r.FromScratch, PostsAdded: r.PostsAdded, Error: r.Error,
		StartedAt: started, FinishedAt: finished,
	}, nil
}

// Package postgres is the PostgreSQL-backed internal/catalog.Storer,
// adapted from the teacher's internal/store/postgres package.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/oklog/ulid/v2"

	"github.com/rakunlabs/mmarchive/internal/catalog"
)

var (
	ConnMaxLifetime = 15 * time.Minute
	MaxIdleConns    = 3
	MaxOpenConns    = 3

	DefaultTablePrefix = "mmarchive_"
)

type Postgres struct {
	db   *sql.DB
	goqu *goqu.Database

	tableRuns exp.IdentifierExpression
}

// Config is the minimal postgres catalog configuration, mirrored from
// internal/config.CatalogPostgres.
type Config struct {
	Datasource  string
	TablePrefix *string
}

func New(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.Datasource == "" {
		return nil, errors.New("catalog postgres datasource is required")
	}

	tablePrefix := DefaultTablePrefix
	if cfg.TablePrefix != nil {
		tablePrefix = *cfg.TablePrefix
	}

	db, err := sql.Open("pgx", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open catalog postgres connection: %w", err)
	}

	db.SetConnMaxLifetime(ConnMaxLifetime)
	db.SetMaxIdleConns(MaxIdleConns)
	db.SetMaxOpenConns(MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("ping catalog postgres: %w", err)
	}

	if err := migrateDB(ctx, db, tablePrefix+"migrations", map[string]string{"TABLE_PREFIX": tablePrefix}); err != nil {
		db.Close()

		return nil, fmt.Errorf("migrate catalog postgres: %w", err)
	}

	slog.Info("connected to catalog postgres")

	return &Postgres{
		db:        db,
		goqu:      goqu.New("postgres", db),
		tableRuns: goqu.T(tablePrefix + "runs"),
	}, nil
}

func (s *Postgres) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Postgres) RecordRun(ctx context.Context, run catalog.Run) error {
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
		"started_at":   run.StartedAt.UTC(),
		"finished_at":  run.FinishedAt.UTC(),
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
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (s *Postgres) ListRuns(ctx context.Context, limit int) ([]catalog.Run, error) {
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

		out = append(out, rowToRun(r))
	}

	return out, rows.Err()
}

func (s *Postgres) LatestRunForChannel(ctx context.Context, channelId string) (*catalog.Run, error) {
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

	run := rowToRun(r)

	return &run, nil
}

func rowToRun(r runRow) catalog.Run {
	return catalog.Run{
		Id: r.Id, RunId: r.RunId, TeamId: r.TeamId, ChannelId: r.ChannelId, ChannelStem: r.ChannelStem,
		Result: catalog.Result(r.Result), FromScratch: r.FromScratch, PostsAdded: r.PostsAdded, Error: r.Error,
		StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
	}
}

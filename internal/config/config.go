// Package config loads mmarchive's configuration: which server to talk
// to, which teams/channels/users to archive, how aggressively to
// paginate, and how the recovery arbiter should behave on ambiguous
// archive state. Configuration loading, env-var overrides, and schema
// validation are external collaborators per the core's design — this
// package is glue, not the archival engine.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/tell"
)

var Service = ""

// Config is the fully-resolved configuration the orchestrator is handed.
// There is no process-wide singleton: Load constructs one Config and the
// entrypoint passes it by value into the server client, planner, and
// orchestrator.
type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Connection Connection `cfg:"connection"`
	Output     Output     `cfg:"output"`
	Targets    Targets    `cfg:"targets"`
	Download   Download   `cfg:"download"`
	Recovery   Recovery   `cfg:"recovery"`
	TokenCache TokenCache `cfg:"token_cache"`
	Catalog    Catalog    `cfg:"catalog"`

	Telemetry tell.Config `cfg:"telemetry,noprefix"`
}

// Connection describes how to reach the server and authenticate.
type Connection struct {
	// ServerURL is the base URL of the Mattermost-style server, e.g.
	// "https://chat.example.com". The API root ("/api/v4") is appended
	// by the client.
	ServerURL string `cfg:"server_url"`

	// Username/Password authenticate via POST users/login. AccessToken,
	// if set, is used directly as a bearer token and skips login
	// entirely (and skips the token cache, since there is nothing to
	// refresh).
	Username    string `cfg:"username"`
	Password    string `cfg:"password" log:"-"`
	AccessToken string `cfg:"access_token" log:"-"`

	// Timeout bounds a single HTTP request. The core treats a timeout
	// as an HttpError, not a distinct error kind.
	Timeout time.Duration `cfg:"timeout" default:"30s"`

	Proxy              string `cfg:"proxy"`
	InsecureSkipVerify bool   `cfg:"insecure_skip_verify"`

	// ThrottlingLoopDelay is slept between paginated page fetches. Zero
	// disables throttling.
	ThrottlingLoopDelay time.Duration `cfg:"throttling_loop_delay" default:"250ms"`
}

// Output describes where the archive lives on disk.
type Output struct {
	Directory string `cfg:"directory" default:"./archive"`
}

// Locator is a user-supplied reference to a team, channel, or user,
// given as exactly one of an opaque id, a human-facing display name, or
// an internal name.
type Locator struct {
	Id           string `cfg:"id"`
	DisplayName  string `cfg:"display_name"`
	InternalName string `cfg:"internal_name"`
}

// Targets selects what to archive.
type Targets struct {
	Teams    []Locator `cfg:"teams"`
	Channels []Locator `cfg:"channels"`
	Users    []Locator `cfg:"users"` // for avatar download only

	MiscTeams           bool `cfg:"misc_teams"`
	MiscPublicChannels  bool `cfg:"misc_public_channels"`
	MiscPrivateChannels bool `cfg:"misc_private_channels"`
	MiscDirectChannels  bool `cfg:"misc_direct_channels"`
	MiscGroupChannels   bool `cfg:"misc_group_channels"`
}

// TimeDirection selects the order posts are fetched and stored in.
type TimeDirection string

const (
	Asc  TimeDirection = "Asc"
	Desc TimeDirection = "Desc"
)

// Download controls pagination and the bulk-file side-channels.
type Download struct {
	// PostLimit bounds the total number of posts ever kept per channel;
	// -1 means unlimited.
	PostLimit int `cfg:"post_limit" default:"-1"`
	// PostSessionLimit bounds how many posts a single run may fetch per
	// channel, independent of PostLimit; -1 means unlimited.
	PostSessionLimit int `cfg:"post_session_limit" default:"-1"`
	// BufferSize is the page size (per_page) requested from the server.
	BufferSize int `cfg:"buffer_size" default:"200"`

	TimeDirection TimeDirection `cfg:"time_direction" default:"Desc"`

	DownloadAttachments bool `cfg:"download_attachments"`
	DownloadEmoji       bool `cfg:"download_emoji"`
	DownloadAvatars     bool `cfg:"download_avatars"`
}

// Recovery lets an operator override the arbiter's default action for
// any of the six decision points (spec §4.6). A nil pointer means "use
// the default policy"; this mirrors the teacher's own
// optional-pointer-means-override idiom (e.g. Server.ForwardAuth).
type Recovery struct {
	UnloadableHeader    *string `cfg:"unloadable_header"`
	SizeMismatch        *string `cfg:"size_mismatch"`
	CompatibleArchive   *string `cfg:"compatible_archive"`
	IncompatibleArchive *string `cfg:"incompatible_archive"`
	BackupSlotOccupied  *string `cfg:"backup_slot_occupied"`
	PartialFailure      *string `cfg:"partial_failure"`
}

// TokenCache configures the encrypted bearer-token sidecar that lets
// back-to-back scheduled runs skip a redundant login (see
// internal/tokencache).
type TokenCache struct {
	Enabled bool   `cfg:"enabled" default:"true"`
	Key     string `cfg:"key" log:"-"`
}

// Catalog configures the optional run-history ledger (internal/catalog).
// Driver is one of "", "sqlite", "postgres"; "" disables the catalog
// entirely (the archive itself never depends on it).
type Catalog struct {
	Driver   string           `cfg:"driver"`
	SQLite   *CatalogSQLite   `cfg:"sqlite"`
	Postgres *CatalogPostgres `cfg:"postgres"`
}

type CatalogSQLite struct {
	Datasource  string  `cfg:"datasource" default:"./archive/catalog.db"`
	TablePrefix *string `cfg:"table_prefix"`
}

type CatalogPostgres struct {
	Datasource  string  `cfg:"datasource" log:"-"`
	TablePrefix *string `cfg:"table_prefix"`
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("MMARCHIVE_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}

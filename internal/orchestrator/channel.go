package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/mmarchive/internal/archive"
	"github.com/rakunlabs/mmarchive/internal/catalog"
	"github.com/rakunlabs/mmarchive/internal/fetch"
	"github.com/rakunlabs/mmarchive/internal/fetchfile"
	"github.com/rakunlabs/mmarchive/internal/model"
	"github.com/rakunlabs/mmarchive/internal/planner"
	"github.com/rakunlabs/mmarchive/internal/recovery"
)

// errSkipChannel signals that the recovery arbiter chose SkipDownload
// at some decision point; it never escapes processChannel as an error.
var errSkipChannel = errors.New("orchestrator: skip channel per recovery arbiter")

type chanResult int

const (
	chanDownloaded chanResult = iota
	chanNothingToDo
	chanSkip
)

// postResolver adapts the server client to planner.PostResolver, the
// last-resort id-to-time lookup the planner uses when a request's
// afterPost/beforePost anchor can't be short-circuited against the
// archive's own recorded boundaries (spec §4.5).
type postResolver struct{ o *Orchestrator }

func (r postResolver) ResolvePostTime(ctx context.Context, id model.Id) (model.Time, error) {
	raw, err := r.o.client.GetPost(ctx, id)
	if err != nil {
		return 0, err
	}

	post, _, err := model.PostFromServer(raw)
	if err != nil {
		return 0, err
	}

	return post.CreateTime, nil
}

// processChannel runs one channel through the full state machine
// (spec §4.7): loadPrevious, decideRecovery, plan, fetch, finalize (or
// roll back), cleanup. It never returns an error to its caller —
// per-channel failures are recorded on the returned catalog.Run
// instead, so one bad channel never aborts the run (spec §7).
func (o *Orchestrator) processChannel(ctx context.Context, runId string, t target) catalog.Run {
	started := time.Now()
	log := logi.Ctx(ctx)

	run := catalog.Run{
		RunId: runId, TeamId: string(t.channel.TeamId), ChannelId: string(t.channel.Id),
		ChannelStem: t.stem, StartedAt: started,
	}

	result, fromScratch, added, err := o.downloadChannel(ctx, t)

	run.FromScratch = fromScratch
	run.PostsAdded = added
	run.FinishedAt = time.Now()

	switch {
	case errors.Is(err, errSkipChannel):
		run.Result = catalog.ResultSkipped
	case err != nil:
		run.Result = catalog.ResultFailed
		run.Error = err.Error()
		log.Error("mmarchive: channel processing failed", "error", err)
	case result == chanSkip:
		run.Result = catalog.ResultSkipped
	case result == chanNothingToDo:
		run.Result = catalog.ResultNothingToDo
	default:
		run.Result = catalog.ResultDownloaded
		log.Info("mmarchive: channel processed", "posts_added", added, "from_scratch", fromScratch)
	}

	return run
}

func (o *Orchestrator) downloadChannel(ctx context.Context, t target) (chanResult, bool, int, error) {
	dir := o.cfg.Output.Directory
	stem := t.stem

	header, existed, err := archive.LoadHeader(dir, stem)
	if err != nil {
		var unloadable *archive.ErrUnloadableHeader
		if !errors.As(err, &unloadable) {
			return chanDownloaded, false, 0, err
		}

		switch o.arbiter.OnUnloadableHeader(stem, err) {
		case recovery.Delete:
			if err := archive.DeletePair(dir, stem); err != nil {
				return chanDownloaded, false, 0, err
			}
		default: // Backup
			if _, err := o.backupAway(dir, stem); err != nil {
				if errors.Is(err, errSkipChannel) {
					return chanSkip, false, 0, err
				}

				return chanDownloaded, false, 0, err
			}
		}

		existed = false
		header = archive.ChannelHeader{}
	}

	var headerPtr *archive.ChannelHeader
	if existed {
		headerPtr = &header
	}

	if headerPtr != nil && headerPtr.Storage != nil {
		actual, err := archive.DataFileSize(dir, stem)
		if err != nil {
			return chanDownloaded, false, 0, err
		}

		if actual != headerPtr.Storage.ByteSize {
			switch o.arbiter.OnSizeMismatch(stem, headerPtr.Storage.ByteSize, actual) {
			case recovery.Reuse:
				if err := archive.TruncateData(dir, stem, headerPtr.Storage.ByteSize); err != nil {
					return chanDownloaded, false, 0, err
				}
			case recovery.Delete:
				if err := archive.DeletePair(dir, stem); err != nil {
					return chanDownloaded, false, 0, err
				}

				headerPtr = nil
			case recovery.SkipDownload:
				return chanSkip, false, 0, nil
			default: // Backup
				if _, err := o.backupAway(dir, stem); err != nil {
					if errors.Is(err, errSkipChannel) {
						return chanSkip, false, 0, err
					}

					return chanDownloaded, false, 0, err
				}

				headerPtr = nil
			}
		}
	}

	req := o.requestFor(t.channel)
	resolver := postResolver{o}

	var lastMsgTime *model.Time
	if t.channel.LastMessageTime != model.Zero {
		lmt := t.channel.LastMessageTime
		lastMsgTime = &lmt
	}

	decision, err := planner.Plan(ctx, req, resolver, headerPtr, lastMsgTime)
	if err != nil {
		return chanDownloaded, false, 0, fmt.Errorf("plan: %w", err)
	}

	if decision == nil {
		return chanNothingToDo, false, 0, nil
	}

	var headerBackupStem string

	if headerPtr != nil {
		if decision.FromScratch {
			switch o.arbiter.OnIncompatibleArchive(stem) {
			case recovery.Delete:
				if err := archive.DeletePair(dir, stem); err != nil {
					return chanDownloaded, true, 0, err
				}

				headerPtr = nil
			case recovery.SkipDownload:
				return chanSkip, true, 0, nil
			default: // Backup
				if _, err := o.backupAway(dir, stem); err != nil {
					if errors.Is(err, errSkipChannel) {
						return chanSkip, true, 0, err
					}

					return chanDownloaded, true, 0, err
				}

				headerPtr = nil
			}
		} else {
			switch o.arbiter.OnCompatibleArchive(stem) {
			case recovery.Delete:
				if err := archive.DeletePair(dir, stem); err != nil {
					return chanDownloaded, false, 0, err
				}

				headerPtr = nil

				decision, err = planner.Plan(ctx, req, resolver, nil, lastMsgTime)
				if err != nil {
					return chanDownloaded, false, 0, fmt.Errorf("replan after delete: %w", err)
				}
			case recovery.SkipDownload:
				return chanSkip, false, 0, nil
			case recovery.Reuse:
				// no-op: append onto the archive exactly as planned.
			default: // Backup
				backupStem, err := o.backupHeaderOnly(dir, stem)
				if err != nil {
					if errors.Is(err, errSkipChannel) {
						return chanSkip, false, 0, err
					}

					return chanDownloaded, false, 0, err
				}

				headerBackupStem = backupStem
			}
		}
	}

	if decision == nil {
		return chanNothingToDo, false, 0, nil
	}

	workingHeader := archive.ChannelHeader{Version: archive.SchemaVersion, Channel: t.channel, Team: t.team}

	var preFetchSize int64

	if headerPtr != nil {
		workingHeader = *headerPtr
		if headerPtr.Storage != nil {
			preFetchSize = headerPtr.Storage.ByteSize
		}
	} else if err := archive.RemoveData(dir, stem); err != nil {
		return chanDownloaded, decision.FromScratch, 0, err
	}

	dw, err := archive.OpenDataWriter(dir, stem)
	if err != nil {
		return chanDownloaded, decision.FromScratch, 0, err
	}

	filters := decision.Filters
	filters.BufferSize = o.cfg.Download.BufferSize

	var newStorage archive.PostStorage

	postsAdded := 0

	filters.OnEmoji = func(e model.Emoji) {
		workingHeader.AddEmoji(e)
		o.maybeDownloadEmoji(ctx, e)
	}

	processor := func(post model.Post, hints fetch.Hints) error {
		if err := dw.WritePost(post); err != nil {
			return err
		}

		newStorage.AddSortedPost(post, hints, filters.Direction)
		postsAdded++

		o.enrichHeader(ctx, &workingHeader, post, stem)

		return nil
	}

	_, fetchErr := fetch.ProcessPosts(ctx, o.client, t.channel.Id, t.channel.TotalMsgCount, filters, processor)

	closeErr := dw.Close()
	if fetchErr == nil {
		fetchErr = closeErr
	}

	if fetchErr != nil || ctx.Err() != nil {
		cause := fetchErr
		if cause == nil {
			cause = ctx.Err()
		}

		if rerr := o.handleInterrupt(dir, stem, headerBackupStem, preFetchSize, workingHeader, newStorage, decision.FromScratch, cause); rerr != nil {
			return chanDownloaded, decision.FromScratch, postsAdded, rerr
		}

		return chanDownloaded, decision.FromScratch, postsAdded, cause
	}

	if err := o.finalize(dir, stem, headerBackupStem, workingHeader, newStorage, decision.FromScratch); err != nil {
		return chanDownloaded, decision.FromScratch, postsAdded, err
	}

	return chanDownloaded, decision.FromScratch, postsAdded, nil
}

// requestFor builds the planner request for one channel from the
// resolved configuration. There is no per-channel anchor override in
// config.Download — every run asks the planner to extend coverage as
// far as time/session/post limits allow, letting Plan itself decide
// whether that means nothing-to-do, append, or from-scratch.
func (o *Orchestrator) requestFor(ch model.Channel) planner.Request {
	dir := fetch.Asc
	if o.cfg.Download.TimeDirection == "Desc" {
		dir = fetch.Desc
	}

	return planner.Request{
		Direction:        dir,
		PostLimit:        o.cfg.Download.PostLimit,
		PostSessionLimit: o.cfg.Download.PostSessionLimit,
	}
}

// finalize folds newStorage into workingHeader, rewrites the header
// atomically, and (on the append path) removes the now-superseded
// header-only safety backup (spec §4.7's "writeHeader" then
// "cleanupTempBackup" states).
func (o *Orchestrator) finalize(dir, stem, headerBackupStem string, workingHeader archive.ChannelHeader, newStorage archive.PostStorage, fromScratch bool) error {
	if fromScratch {
		if newStorage.Count > 0 {
			workingHeader.Storage = &newStorage
		}
	} else if newStorage.Count > 0 {
		if workingHeader.Storage == nil {
			workingHeader.Storage = &newStorage
		} else if err := workingHeader.Storage.Extend(newStorage); err != nil {
			return fmt.Errorf("extend storage: %w", err)
		}
	}

	if workingHeader.Storage != nil {
		size, err := archive.DataFileSize(dir, stem)
		if err != nil {
			return err
		}

		workingHeader.Storage.ByteSize = size
	}

	if err := archive.WriteHeader(dir, stem, workingHeader); err != nil {
		return err
	}

	if headerBackupStem != "" {
		if err := archive.DeletePair(dir, headerBackupStem); err != nil {
			return fmt.Errorf("cleanup temp backup %s: %w", headerBackupStem, err)
		}
	}

	return nil
}

// handleInterrupt implements the arbiter's two interrupt outcomes
// (spec §4.7): Backup means retainPartial — accept whatever was
// written so far as the new valid archive; Delete means restoreBackup
// — in append mode, truncate the data file to its pre-fetch size and
// rename the header-only backup (if one was taken) back to <stem>; in
// from-scratch mode, delete the partially written <stem> pair. A
// previous archive that a from-scratch run moved to a backup stem stays
// there; it is not renamed back to <stem>.
func (o *Orchestrator) handleInterrupt(dir, stem, headerBackupStem string, preFetchSize int64, workingHeader archive.ChannelHeader, newStorage archive.PostStorage, fromScratch bool, cause error) error {
	action := o.arbiter.OnPartialFailure(stem, cause)

	if action == recovery.Backup {
		return o.finalize(dir, stem, headerBackupStem, workingHeader, newStorage, fromScratch)
	}

	if fromScratch {
		return archive.DeletePair(dir, stem)
	}

	if err := archive.TruncateData(dir, stem, preFetchSize); err != nil {
		return fmt.Errorf("rollback truncate: %w", err)
	}

	if headerBackupStem != "" {
		if err := archive.RenameHeaderOnly(dir, headerBackupStem, stem); err != nil {
			return fmt.Errorf("rollback restore header: %w", err)
		}
	}

	return nil
}

// backupAway renames the full <stem> pair to a free backup slot,
// consulting OnBackupSlotOccupied first if the primary slot is taken.
func (o *Orchestrator) backupAway(dir, stem string) (string, error) {
	if err := o.resolveBackupSlot(dir, stem); err != nil {
		return "", err
	}

	backupStem := archive.BackupStem(dir, stem)
	if err := archive.RenamePair(dir, stem, backupStem); err != nil {
		return "", err
	}

	return backupStem, nil
}

// backupHeaderOnly renames just <stem>'s header file, the transaction
// shape used before an in-place append (spec §5).
func (o *Orchestrator) backupHeaderOnly(dir, stem string) (string, error) {
	if err := o.resolveBackupSlot(dir, stem); err != nil {
		return "", err
	}

	backupStem := archive.BackupStem(dir, stem)
	if err := archive.RenameHeaderOnly(dir, stem, backupStem); err != nil {
		return "", err
	}

	return backupStem, nil
}

func (o *Orchestrator) resolveBackupSlot(dir, stem string) error {
	if !archive.BackupPrimaryOccupied(dir, stem) {
		return nil
	}

	switch o.arbiter.OnBackupSlotOccupied(stem) {
	case recovery.Delete:
		return archive.DeletePair(dir, stem+"--backup")
	case recovery.SkipDownload:
		return errSkipChannel
	default: // Backup: archive.BackupStem will pick the next free "~N" slot.
		return nil
	}
}

// enrichHeader records the post's author and reactors in the header's
// user set, and fetches the author's avatar and the post's
// attachments when configured (spec's "glue" file side-channels,
// internal/fetchfile).
func (o *Orchestrator) enrichHeader(ctx context.Context, h *archive.ChannelHeader, post model.Post, stem string) {
	if u, err := o.cache.User(ctx, post.UserId); err != nil {
		slog.Warn("mmarchive: failed to resolve post author", "post_id", string(post.Id), "error", err)
	} else {
		h.AddUser(u)
		o.maybeDownloadAvatar(ctx, u)
	}

	for _, r := range post.Reactions {
		if u, err := o.cache.User(ctx, r.UserId); err == nil {
			h.AddUser(u)
			o.maybeDownloadAvatar(ctx, u)
		}
	}

	if !o.cfg.Download.DownloadAttachments {
		return
	}

	for _, f := range post.Files {
		dest := fetchfile.AttachmentPath(o.cfg.Output.Directory, stem, string(f.Id), f.Name)

		if _, err := fetchfile.FetchToPath(ctx, o.client, "files/"+string(f.Id), dest); err != nil {
			slog.Warn("mmarchive: failed to download attachment", "file_id", string(f.Id), "error", err)
		}
	}
}

func (o *Orchestrator) maybeDownloadAvatar(ctx context.Context, u model.User) {
	if !o.cfg.Download.DownloadAvatars {
		return
	}

	dest := fetchfile.AvatarPath(o.cfg.Output.Directory, string(u.Id))

	if _, err := fetchfile.FetchToPath(ctx, o.client, "users/"+string(u.Id)+"/image", dest); err != nil {
		slog.Warn("mmarchive: failed to download avatar", "user_id", string(u.Id), "error", err)
	}
}

func (o *Orchestrator) maybeDownloadEmoji(ctx context.Context, e model.Emoji) {
	if !o.cfg.Download.DownloadEmoji {
		return
	}

	dest := fetchfile.EmojiPath(o.cfg.Output.Directory, string(e.Id), e.Name)

	if _, err := fetchfile.FetchToPath(ctx, o.client, "emoji/"+string(e.Id)+"/image", dest); err != nil {
		slog.Warn("mmarchive: failed to download emoji image", "emoji_id", string(e.Id), "error", err)
	}
}

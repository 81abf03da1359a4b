// Package fetchfile is the bulk file-fetcher: the external collaborator
// spec.md §1 treats attachment/emoji-image/avatar downloads as (a
// "fetch URL to path, skip if present" contract, not part of the
// archival engine's core). It reuses the server client's authenticated
// GetRaw so attachment downloads carry the same bearer token and
// context-map path substitution as every other request.
package fetchfile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// Source is the subset of *mm.Client the bulk fetcher needs. The seam
// exists so FetchToPath can be tested without a network.
type Source interface {
	GetRaw(ctx context.Context, path string, query url.Values) (headers http.Header, body io.ReadCloser, err error)
}

// FetchToPath downloads apiPath (resolved and authenticated by source)
// to destPath, creating parent directories as needed. If destPath
// already exists, the fetch is skipped entirely — re-running the
// archiver never re-downloads a file already on disk, since
// attachments, emoji images, and avatars are immutable once created.
func FetchToPath(ctx context.Context, source Source, apiPath string, destPath string) (skipped bool, err error) {
	if _, err := os.Stat(destPath); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("fetchfile: stat %s: %w", destPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, fmt.Errorf("fetchfile: mkdir %s: %w", filepath.Dir(destPath), err)
	}

	_, body, err := source.GetRaw(ctx, apiPath, nil)
	if err != nil {
		return false, fmt.Errorf("fetchfile: fetch %s: %w", apiPath, err)
	}
	defer body.Close()

	tmp := destPath + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Errorf("fetchfile: create %s: %w", tmp, err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)

		return false, fmt.Errorf("fetchfile: write %s: %w", tmp, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)

		return false, fmt.Errorf("fetchfile: close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, destPath); err != nil {
		return false, fmt.Errorf("fetchfile: rename %s to %s: %w", tmp, destPath, err)
	}

	return false, nil
}

// AttachmentPath computes the on-disk path for one channel's attachment
// within its "<channelStem>--files/" directory (spec §6).
func AttachmentPath(outputDir, channelStem, fileId, fileName string) string {
	return filepath.Join(outputDir, channelStem+"--files", fileId+"_"+fileName)
}

// EmojiPath computes the on-disk path for a custom emoji image within
// the shared "emojis/" directory (spec §6).
func EmojiPath(outputDir, emojiId, name string) string {
	return filepath.Join(outputDir, "emojis", emojiId+"_"+name)
}

// AvatarPath computes the on-disk path for a user avatar within the
// shared "avatars/" directory (spec §6).
func AvatarPath(outputDir, userId string) string {
	return filepath.Join(outputDir, "avatars", userId)
}

package fetchfile

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

type fakeSource struct {
	body  string
	calls int
}

func (f *fakeSource) GetRaw(_ context.Context, _ string, _ url.Values) (http.Header, io.ReadCloser, error) {
	f.calls++

	return http.Header{}, io.NopCloser(bytes.NewBufferString(f.body)), nil
}

func TestFetchToPathDownloadsOnce(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "avatars", "u1")

	src := &fakeSource{body: "binary-data"}

	skipped, err := FetchToPath(context.Background(), src, "users/u1/image", dest)
	if err != nil {
		t.Fatalf("FetchToPath: %v", err)
	}

	if skipped {
		t.Fatal("expected not skipped on first fetch")
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "binary-data" {
		t.Fatalf("content = %q", got)
	}

	if src.calls != 1 {
		t.Fatalf("calls = %d, want 1", src.calls)
	}
}

func TestFetchToPathSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "emojis", "e1_smile.png")

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(dest, []byte("already-here"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{body: "would-overwrite"}

	skipped, err := FetchToPath(context.Background(), src, "emoji/e1/image", dest)
	if err != nil {
		t.Fatalf("FetchToPath: %v", err)
	}

	if !skipped {
		t.Fatal("expected skipped")
	}

	if src.calls != 0 {
		t.Fatalf("calls = %d, want 0 (skipped before fetch)", src.calls)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "already-here" {
		t.Fatalf("content overwritten: %q", got)
	}
}

func TestPathHelpers(t *testing.T) {
	if got := AttachmentPath("/out", "o.team--general", "f1", "photo.png"); got != "/out/o.team--general--files/f1_photo.png" {
		t.Fatalf("AttachmentPath = %q", got)
	}

	if got := EmojiPath("/out", "e1", "smile"); got != "/out/emojis/e1_smile" {
		t.Fatalf("EmojiPath = %q", got)
	}

	if got := AvatarPath("/out", "u1"); got != "/out/avatars/u1" {
		t.Fatalf("AvatarPath = %q", got)
	}
}

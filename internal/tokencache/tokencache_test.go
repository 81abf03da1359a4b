package tokencache

import "testing"

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if err := Save(dir, "hunter2", "tok-abc123"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir, "hunter2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got != "tok-abc123" {
		t.Fatalf("got %q, want %q", got, "tok-abc123")
	}
}

func TestLoadMissingFileIsMiss(t *testing.T) {
	dir := t.TempDir()

	got, err := Load(dir, "hunter2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got != "" {
		t.Fatalf("expected empty token on cache miss, got %q", got)
	}
}

func TestLoadWrongPassphraseIsMiss(t *testing.T) {
	dir := t.TempDir()

	if err := Save(dir, "correct-horse", "tok-xyz"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir, "wrong-passphrase")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got != "" {
		t.Fatalf("expected empty token with wrong passphrase, got %q", got)
	}
}

func TestClearRemovesCache(t *testing.T) {
	dir := t.TempDir()

	if err := Save(dir, "k", "tok"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := Clear(dir); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	got, err := Load(dir, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got != "" {
		t.Fatalf("expected empty token after Clear, got %q", got)
	}
}

func TestClearOnMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()

	if err := Clear(dir); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
}

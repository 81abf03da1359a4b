package archive

import (
	"testing"

	"github.com/rakunlabs/mmarchive/internal/model"
)

func TestBackupStemFirstUnoccupiedSlot(t *testing.T) {
	dir := t.TempDir()

	if got, want := BackupStem(dir, "o.team--general"), "o.team--general--backup"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	h := ChannelHeader{Version: "0", Channel: model.Channel{Id: "c1"}}
	if err := WriteHeader(dir, "o.team--general--backup", h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	if got, want := BackupStem(dir, "o.team--general"), "o.team--general--backup~1"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBackupPrimaryOccupied(t *testing.T) {
	dir := t.TempDir()

	if BackupPrimaryOccupied(dir, "o.team--general") {
		t.Fatal("expected unoccupied on empty dir")
	}

	h := ChannelHeader{Version: "0", Channel: model.Channel{Id: "c1"}}
	if err := WriteHeader(dir, "o.team--general--backup", h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	if !BackupPrimaryOccupied(dir, "o.team--general") {
		t.Fatal("expected occupied after writing primary backup")
	}
}

func TestRenamePairMovesBothFiles(t *testing.T) {
	dir := t.TempDir()

	h := ChannelHeader{Version: "0", Channel: model.Channel{Id: "c1"}}
	if err := WriteHeader(dir, "o.team--general", h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	dw, err := OpenDataWriter(dir, "o.team--general")
	if err != nil {
		t.Fatalf("OpenDataWriter: %v", err)
	}

	if err := dw.WritePost(post("p1", 100)); err != nil {
		t.Fatalf("WritePost: %v", err)
	}

	if err := dw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := RenamePair(dir, "o.team--general", "o.team--general--backup"); err != nil {
		t.Fatalf("RenamePair: %v", err)
	}

	if _, ok, err := LoadHeader(dir, "o.team--general"); err != nil || ok {
		t.Fatalf("expected original header gone, ok=%v err=%v", ok, err)
	}

	if _, ok, err := LoadHeader(dir, "o.team--general--backup"); err != nil || !ok {
		t.Fatalf("expected backup header present, ok=%v err=%v", ok, err)
	}
}

package archive

import (
	"os"
	"testing"

	"github.com/rakunlabs/mmarchive/internal/model"
)

func TestWriteHeaderThenLoadHeaderRoundTrip(t *testing.T) {
	dir := t.TempDir()

	h := ChannelHeader{Version: "0", Channel: model.Channel{Id: "c1", Name: "general"}}

	if err := WriteHeader(dir, "o.team--general", h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	loaded, ok, err := LoadHeader(dir, "o.team--general")
	if err != nil {
		t.Fatalf("LoadHeader: %v", err)
	}

	if !ok {
		t.Fatal("expected header to be found")
	}

	if loaded.Channel.Id != "c1" {
		t.Fatalf("loaded channel id = %s, want c1", loaded.Channel.Id)
	}
}

func TestLoadHeaderMissingIsNotError(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := LoadHeader(dir, "o.team--nope")
	if err != nil {
		t.Fatalf("LoadHeader: %v", err)
	}

	if ok {
		t.Fatal("expected ok=false for missing header")
	}
}

func TestDataWriterAppendsNewlineDelimitedPosts(t *testing.T) {
	dir := t.TempDir()

	dw, err := OpenDataWriter(dir, "o.team--general")
	if err != nil {
		t.Fatalf("OpenDataWriter: %v", err)
	}

	if err := dw.WritePost(post("p1", 100)); err != nil {
		t.Fatalf("WritePost: %v", err)
	}

	if err := dw.WritePost(post("p2", 200)); err != nil {
		t.Fatalf("WritePost: %v", err)
	}

	if err := dw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(DataPath(dir, "o.team--general"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := 0
	for _, b := range raw {
		if b == '\n' {
			lines++
		}
	}

	if lines != 2 {
		t.Fatalf("lines = %d, want 2", lines)
	}
}

func TestTruncateDataRecoversFromCorruption(t *testing.T) {
	dir := t.TempDir()

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

	goodSize, err := DataFileSize(dir, "o.team--general")
	if err != nil {
		t.Fatalf("DataFileSize: %v", err)
	}

	f, err := os.OpenFile(DataPath(dir, "o.team--general"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}

	if _, err := f.WriteString("junk"); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	f.Close()

	if err := TruncateData(dir, "o.team--general", goodSize); err != nil {
		t.Fatalf("TruncateData: %v", err)
	}

	finalSize, err := DataFileSize(dir, "o.team--general")
	if err != nil {
		t.Fatalf("DataFileSize: %v", err)
	}

	if finalSize != goodSize {
		t.Fatalf("size = %d, want %d", finalSize, goodSize)
	}
}

package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rakunlabs/mmarchive/internal/model"
)

const (
	headerSuffix = ".meta.json"
	dataSuffix   = ".data.json"
)

// HeaderPath and DataPath compute the two file paths for a channel
// stem within dir (spec §6).
func HeaderPath(dir, stem string) string { return filepath.Join(dir, stem+headerSuffix) }
func DataPath(dir, stem string) string   { return filepath.Join(dir, stem+dataSuffix) }

// LoadHeader reads and schema-validates a channel's header file. A
// missing file returns (ChannelHeader{}, false, nil) — no previous
// archive, not an error. Any other read failure or a failed Validate
// is returned as an *ErrUnloadableHeader-wrapping error for the
// orchestrator's recovery path.
func LoadHeader(dir, stem string) (ChannelHeader, bool, error) {
	raw, err := os.ReadFile(HeaderPath(dir, stem))
	if err != nil {
		if os.IsNotExist(err) {
			return ChannelHeader{}, false, nil
		}

		return ChannelHeader{}, true, &ErrUnloadableHeader{Reason: err.Error()}
	}

	h, err := DecodeHeader(raw)
	if err != nil {
		return ChannelHeader{}, true, &ErrUnloadableHeader{Reason: err.Error()}
	}

	if err := Validate(h); err != nil {
		return ChannelHeader{}, true, err
	}

	return h, true, nil
}

// WriteHeader atomically replaces the header file: the header is
// fully rendered in memory, then written to a temp file in the same
// directory and renamed into place, so a crash mid-write never leaves
// a truncated header (spec §5's "header rewritten atomically: truncate
// then write" is strengthened here to rename-based atomicity, the
// stronger guarantee POSIX rename provides over truncate+write).
func WriteHeader(dir, stem string, h ChannelHeader) error {
	encoded, err := h.Encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("archive: mkdir %s: %w", dir, err)
	}

	final := HeaderPath(dir, stem)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("archive: rename %s to %s: %w", tmp, final, err)
	}

	return nil
}

// DataFileSize stats the data file, returning 0 if it does not exist.
func DataFileSize(dir, stem string) (int64, error) {
	info, err := os.Stat(DataPath(dir, stem))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("archive: stat %s: %w", DataPath(dir, stem), err)
	}

	return info.Size(), nil
}

// TruncateData truncates the data file down to size, used by the
// recovery arbiter's Reuse action and by append-mode rollback.
func TruncateData(dir, stem string, size int64) error {
	if err := os.Truncate(DataPath(dir, stem), size); err != nil {
		return fmt.Errorf("archive: truncate %s: %w", DataPath(dir, stem), err)
	}

	return nil
}

// DataWriter appends compact, newline-delimited post JSON to a
// channel's data file. From-scratch mode should Remove the file first;
// append mode opens directly.
type DataWriter struct {
	file *os.File
	w    *bufio.Writer
}

// OpenDataWriter opens the data file for append (creating it if
// absent). Callers doing a from-scratch write must remove the old file
// first — OpenDataWriter never truncates an existing file itself,
// since that decision belongs to the recovery arbiter.
func OpenDataWriter(dir, stem string) (*DataWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: mkdir %s: %w", dir, err)
	}

	f, err := os.OpenFile(DataPath(dir, stem), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", DataPath(dir, stem), err)
	}

	return &DataWriter{file: f, w: bufio.NewWriter(f)}, nil
}

// WritePost appends one post as a compact JSON line.
func (dw *DataWriter) WritePost(p model.Post) error {
	raw, err := p.ToArchive()
	if err != nil {
		return fmt.Errorf("archive: encode post %s: %w", p.Id, err)
	}

	if _, err := dw.w.Write(raw); err != nil {
		return err
	}

	return dw.w.WriteByte('\n')
}

// Close flushes buffered writes and closes the underlying file.
func (dw *DataWriter) Close() error {
	if err := dw.w.Flush(); err != nil {
		dw.file.Close()

		return err
	}

	return dw.file.Close()
}

// RemoveData removes the data file, used before a from-scratch write.
// A missing file is not an error.
func RemoveData(dir, stem string) error {
	if err := os.Remove(DataPath(dir, stem)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("archive: remove %s: %w", DataPath(dir, stem), err)
	}

	return nil
}

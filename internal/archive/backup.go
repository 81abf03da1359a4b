package archive

import (
	"fmt"
	"os"
)

const backupSuffix = "--backup"

// BackupStem returns the first unoccupied backup stem for base: the
// primary slot "<base>--backup", then "<base>--backup~1", "~2", ...
// (spec §6). Occupancy is decided by the header file's presence.
func BackupStem(dir, base string) string {
	primary := base + backupSuffix
	if _, err := os.Stat(HeaderPath(dir, primary)); os.IsNotExist(err) {
		return primary
	}

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s%s~%d", base, backupSuffix, n)
		if _, err := os.Stat(HeaderPath(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}

// BackupPrimaryOccupied reports whether the primary backup slot for
// base is already in use — the recovery arbiter's OnBackupSlotOccupied
// decision point only fires when this is true.
func BackupPrimaryOccupied(dir, base string) bool {
	_, err := os.Stat(HeaderPath(dir, base+backupSuffix))

	return err == nil
}

// RenamePair renames both the header and (if present) the data file
// from one stem to another within dir, using os.Rename for
// byte-exact, cheap rollback (spec §5: "backup files are renamed, not
// copied").
func RenamePair(dir, from, to string) error {
	if err := os.Rename(HeaderPath(dir, from), HeaderPath(dir, to)); err != nil {
		return fmt.Errorf("archive: rename header %s to %s: %w", from, to, err)
	}

	if _, err := os.Stat(DataPath(dir, from)); err == nil {
		if err := os.Rename(DataPath(dir, from), DataPath(dir, to)); err != nil {
			return fmt.Errorf("archive: rename data %s to %s: %w", from, to, err)
		}
	}

	return nil
}

// RenameHeaderOnly renames just the header file, the transaction shape
// used for append-mode backups (spec §5): the data file stays in place
// since rollback is a truncate, not a rename.
func RenameHeaderOnly(dir, from, to string) error {
	if err := os.Rename(HeaderPath(dir, from), HeaderPath(dir, to)); err != nil {
		return fmt.Errorf("archive: rename header %s to %s: %w", from, to, err)
	}

	return nil
}

// DeletePair removes both files of a stem, ignoring a missing file.
func DeletePair(dir, stem string) error {
	if err := os.Remove(HeaderPath(dir, stem)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("archive: remove header %s: %w", stem, err)
	}

	return RemoveData(dir, stem)
}

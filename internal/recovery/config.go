package recovery

import (
	"fmt"

	"github.com/rakunlabs/mmarchive/internal/config"
)

// OverridesFromConfig translates the operator-facing string overrides
// in config.Recovery into typed Overrides, validating that each
// non-nil value names a recognized Action.
func OverridesFromConfig(cfg config.Recovery) (Overrides, error) {
	var (
		out Overrides
		err error
	)

	if out.UnloadableHeader, err = parsePtr(cfg.UnloadableHeader); err != nil {
		return Overrides{}, fmt.Errorf("recovery: unloadable_header: %w", err)
	}

	if out.SizeMismatch, err = parsePtr(cfg.SizeMismatch); err != nil {
		return Overrides{}, fmt.Errorf("recovery: size_mismatch: %w", err)
	}

	if out.CompatibleArchive, err = parsePtr(cfg.CompatibleArchive); err != nil {
		return Overrides{}, fmt.Errorf("recovery: compatible_archive: %w", err)
	}

	if out.IncompatibleArchive, err = parsePtr(cfg.IncompatibleArchive); err != nil {
		return Overrides{}, fmt.Errorf("recovery: incompatible_archive: %w", err)
	}

	if out.BackupSlotOccupied, err = parsePtr(cfg.BackupSlotOccupied); err != nil {
		return Overrides{}, fmt.Errorf("recovery: backup_slot_occupied: %w", err)
	}

	if out.PartialFailure, err = parsePtr(cfg.PartialFailure); err != nil {
		return Overrides{}, fmt.Errorf("recovery: partial_failure: %w", err)
	}

	return out, nil
}

func parsePtr(s *string) (*Action, error) {
	if s == nil {
		return nil, nil
	}

	switch Action(*s) {
	case Backup, Delete, Reuse, SkipDownload:
		a := Action(*s)

		return &a, nil
	default:
		return nil, fmt.Errorf("unrecognized action %q", *s)
	}
}

package recovery

import (
	"errors"
	"testing"

	"github.com/rakunlabs/mmarchive/internal/config"
)

func configRecovery(unloadableHeader *string) config.Recovery {
	return config.Recovery{UnloadableHeader: unloadableHeader}
}

func TestDefaultArbiterDefaultPolicy(t *testing.T) {
	a := New(Overrides{})

	if got := a.OnUnloadableHeader("o.team--general", errors.New("boom")); got != Backup {
		t.Fatalf("OnUnloadableHeader = %s, want Backup", got)
	}

	if got := a.OnSizeMismatch("o.team--general", 100, 150); got != Backup {
		t.Fatalf("OnSizeMismatch = %s, want Backup", got)
	}

	if got := a.OnCompatibleArchive("o.team--general"); got != Reuse {
		t.Fatalf("OnCompatibleArchive = %s, want Reuse", got)
	}

	if got := a.OnIncompatibleArchive("o.team--general"); got != Backup {
		t.Fatalf("OnIncompatibleArchive = %s, want Backup", got)
	}

	if got := a.OnBackupSlotOccupied("o.team--general"); got != Backup {
		t.Fatalf("OnBackupSlotOccupied = %s, want Backup", got)
	}

	if got := a.OnPartialFailure("o.team--general", errors.New("boom")); got != Backup {
		t.Fatalf("OnPartialFailure = %s, want Backup", got)
	}
}

func TestDefaultArbiterOverrides(t *testing.T) {
	del := Delete
	a := New(Overrides{CompatibleArchive: &del})

	if got := a.OnCompatibleArchive("o.team--general"); got != Delete {
		t.Fatalf("OnCompatibleArchive override = %s, want Delete", got)
	}
}

func TestDefaultArbiterReuseInvalidOnShrunkFile(t *testing.T) {
	reuse := Reuse
	a := New(Overrides{SizeMismatch: &reuse})

	// actual < recorded: Reuse can't truncate further, falls back to Backup.
	if got := a.OnSizeMismatch("o.team--general", 150, 100); got != Backup {
		t.Fatalf("OnSizeMismatch = %s, want Backup fallback", got)
	}

	// actual > recorded: Reuse is valid (truncate down to recorded).
	if got := a.OnSizeMismatch("o.team--general", 100, 150); got != Reuse {
		t.Fatalf("OnSizeMismatch = %s, want Reuse", got)
	}
}

func TestOverridesFromConfigRejectsUnknownAction(t *testing.T) {
	bogus := "Frobnicate"

	if _, err := OverridesFromConfig(configRecovery(&bogus)); err == nil {
		t.Fatal("expected error for unrecognized action")
	}
}

func TestOverridesFromConfigParsesKnownAction(t *testing.T) {
	val := "Delete"

	out, err := OverridesFromConfig(configRecovery(&val))
	if err != nil {
		t.Fatalf("OverridesFromConfig: %v", err)
	}

	if out.UnloadableHeader == nil || *out.UnloadableHeader != Delete {
		t.Fatalf("UnloadableHeader = %v, want Delete", out.UnloadableHeader)
	}
}

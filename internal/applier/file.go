package applier

import (
	"context"
	"fmt"
	"os"

	"github.com/halvard/tunectl/internal/backup"
	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/sandbox"
)

// File applies rendered template artifacts. The desired content is already
// rendered by the diff engine and carried on the unit, so apply is a pure
// atomic write and verify is a content-hash compare.
type File struct {
	Root    sandbox.Root
	Backups *backup.Store
}

// Snapshot captures the current artifact content, depositing it in the
// backup store when one is configured.
func (a *File) Snapshot(ctx context.Context, unit *diff.ChangeUnit) (Snapshot, error) {
	content, err := a.Root.ReadFile(unit.Setting.Path)
	if os.IsNotExist(err) {
		return Snapshot{Observation: unit.Before, Existed: false}, nil
	}
	if err != nil {
		return Snapshot{}, opErr("snapshot", unit.Setting.ID, err)
	}

	snap := Snapshot{Observation: unit.Before, Content: content, Existed: true}
	if a.Backups != nil {
		hash, err := a.Backups.Put(content)
		if err != nil {
			return Snapshot{}, opErr("snapshot", unit.Setting.ID, err)
		}
		snap.BackupHash = hash
	}
	return snap, nil
}

// Apply atomically writes the rendered content.
func (a *File) Apply(ctx context.Context, unit *diff.ChangeUnit) error {
	mode, err := unit.Setting.FileMode()
	if err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	if err := a.Root.WriteFile(unit.Setting.Path, []byte(unit.Desired.String()), mode); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	return nil
}

// Verify compares the written content hash against the rendered content.
func (a *File) Verify(ctx context.Context, unit *diff.ChangeUnit) error {
	content, err := a.Root.ReadFile(unit.Setting.Path)
	if err != nil {
		return opErr("verify", unit.Setting.ID, err)
	}
	want := backup.Hash([]byte(unit.Desired.String()))
	if got := backup.Hash(content); got != want {
		return opErr("verify", unit.Setting.ID, fmt.Errorf("content hash %.8s does not match expected %.8s", got, want))
	}
	return nil
}

// Rollback restores the snapshot content, or deletes the file when it did
// not exist before the transaction.
func (a *File) Rollback(ctx context.Context, unit *diff.ChangeUnit, snap Snapshot) error {
	if !snap.Existed {
		if err := a.Root.Remove(unit.Setting.Path); err != nil {
			return opErr("rollback", unit.Setting.ID, err)
		}
		return nil
	}
	mode, err := unit.Setting.FileMode()
	if err != nil {
		mode = 0o644
	}
	if err := a.Root.WriteFile(unit.Setting.Path, snap.Content, mode); err != nil {
		return opErr("rollback", unit.Setting.ID, err)
	}
	return nil
}

// Package applier mutates host state for one change unit at a time.
//
// Each backend implements the same four-step contract: Snapshot captures
// the restorable prior state before anything is touched, Apply performs the
// mutation, Verify re-checks the post-condition, and Rollback restores the
// snapshot. The transaction runner owns ordering and failure policy; the
// appliers own the mechanics of one unit.
package applier

import (
	"context"
	"fmt"

	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/probe"
)

// Snapshot is the restorable pre-apply state of one setting. It is captured
// before any mutation in the transaction and discarded on commit.
type Snapshot struct {
	// Observation is the probed value at snapshot time.
	Observation probe.Observation
	// Content holds the full prior artifact for file-backed backends.
	Content []byte
	// Existed reports whether the artifact was present before the apply.
	Existed bool
	// BackupHash addresses Content in the backup store, when stored.
	BackupHash string
}

// Applier applies, verifies, and rolls back changes for one backend.
type Applier interface {
	Snapshot(ctx context.Context, unit *diff.ChangeUnit) (Snapshot, error)
	Apply(ctx context.Context, unit *diff.ChangeUnit) error
	Verify(ctx context.Context, unit *diff.ChangeUnit) error
	Rollback(ctx context.Context, unit *diff.ChangeUnit, snap Snapshot) error
}

// BackendError describes a failed backend operation on one setting.
type BackendError struct {
	Op  string // "snapshot", "apply", "verify", "rollback"
	ID  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s '%s': %v", e.Op, e.ID, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func opErr(op, id string, err error) error {
	return &BackendError{Op: op, ID: id, Err: err}
}

// Set dispatches appliers by backend tag.
type Set struct {
	appliers map[string]Applier
}

// NewSet creates an empty applier set.
func NewSet() *Set {
	return &Set{appliers: make(map[string]Applier)}
}

// Register adds an applier for a backend tag.
func (s *Set) Register(backend string, a Applier) {
	s.appliers[backend] = a
}

// Get returns the applier for a backend tag.
func (s *Set) Get(backend string) (Applier, error) {
	a, ok := s.appliers[backend]
	if !ok {
		return nil, fmt.Errorf("no applier registered for backend '%s'", backend)
	}
	return a, nil
}

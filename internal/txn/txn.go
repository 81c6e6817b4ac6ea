// Package txn executes a change set as an all-or-nothing transaction.
//
// One transaction runs single-threaded and strictly in the order the diff
// engine produced. From the caller's perspective there are only three
// outcomes: every unit verified (Committed), every applied unit had a
// rollback attempt (RolledBack), or nothing was touched at all (Aborted,
// when a snapshot could not be captured). Hard failures never escape the
// transaction boundary; they become the terminal report.
package txn

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/halvard/tunectl/internal/applier"
	"github.com/halvard/tunectl/internal/diff"
)

// State is the transaction's position in its lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateSnapshotting State = "snapshotting"
	StateApplying     State = "applying"
	StateVerifying    State = "verifying"
	StateRollingBack  State = "rolling-back"
	StateCommitted    State = "committed"
	StateRolledBack   State = "rolled-back"
	// StateAborted means a snapshot could not be captured; the host was
	// not mutated.
	StateAborted State = "aborted"
)

// Result is the transaction report: the terminal state plus every unit
// with its final status and bookkeeping.
type Result struct {
	ID       string
	State    State
	Units    []*diff.ChangeUnit
	Started  time.Time
	Finished time.Time

	// Reason explains an Aborted or cancelled transaction.
	Reason string
	// RollbackFailures counts units whose rollback attempt failed and
	// which therefore need manual intervention.
	RollbackFailures int
}

// Committed reports whether every unit verified and the transaction
// reached its terminal success state.
func (r *Result) Committed() bool { return r.State == StateCommitted }

// Runner executes transactions over a set of backend appliers.
type Runner struct {
	Appliers *applier.Set
	Log      *log.Logger
}

// NewRunner builds a Runner. A nil logger falls back to stderr.
func NewRunner(appliers *applier.Set, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Runner{Appliers: appliers, Log: logger}
}

// Run executes the change set. It always returns a Result; apply, verify,
// and rollback failures are recorded in it rather than returned, so no
// hard failure propagates past the transaction boundary.
//
// Cancellation is honored between units during Applying, but a cancelled
// run still completes rollback of everything already applied before
// returning.
func (r *Runner) Run(ctx context.Context, units []*diff.ChangeUnit) *Result {
	res := &Result{
		ID:      uuid.NewString(),
		State:   StateIdle,
		Units:   units,
		Started: time.Now(),
	}
	logger := r.Log.With("txn", shortID(res.ID))

	if len(units) == 0 {
		res.State = StateCommitted
		res.Finished = time.Now()
		logger.Debug("empty change set, nothing to do")
		return res
	}

	// Snapshotting: capture restorable state for every unit before any
	// mutation. Fail-closed: one missing snapshot aborts the whole run.
	res.State = StateSnapshotting
	snaps := make([]applier.Snapshot, len(units))
	for i, unit := range units {
		ap, err := r.Appliers.Get(unit.Setting.Backend)
		if err != nil {
			return r.abort(res, logger, err.Error())
		}
		snap, err := ap.Snapshot(ctx, unit)
		if err != nil {
			return r.abort(res, logger, err.Error())
		}
		snaps[i] = snap
		unit.BackupHash = snap.BackupHash
	}

	// Applying: strictly in diff order, stopping at the first failure.
	res.State = StateApplying
	var applied []int
	failed := false
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			res.Reason = "cancelled during apply"
			logger.Warn("cancellation received, rolling back applied units", "applied", len(applied))
			failed = true
			break
		}

		ap, _ := r.Appliers.Get(unit.Setting.Backend)
		if err := ap.Apply(ctx, unit); err != nil {
			unit.Status = diff.StatusApplyFailed
			unit.Reason = err.Error()
			logger.Error("apply failed", "setting", unit.Setting.ID, "err", err)
			failed = true
			break
		}
		unit.Status = diff.StatusApplied
		applied = append(applied, i)
		logger.Debug("applied", "setting", unit.Setting.ID, "backend", unit.Setting.Backend)
	}

	// Verifying: every applied unit is checked even after one fails, so
	// the report names all post-conditions that did not hold.
	if !failed {
		res.State = StateVerifying
		for _, i := range applied {
			unit := units[i]
			ap, _ := r.Appliers.Get(unit.Setting.Backend)
			if err := ap.Verify(ctx, unit); err != nil {
				unit.Status = diff.StatusVerifyFailed
				unit.Reason = err.Error()
				logger.Error("verify failed", "setting", unit.Setting.ID, "err", err)
				failed = true
				continue
			}
			unit.Status = diff.StatusVerified
		}
	}

	if !failed {
		res.State = StateCommitted
		res.Finished = time.Now()
		logger.Info("transaction committed", "units", len(units))
		return res
	}

	// RollingBack: reverse apply order, best effort, immune to the
	// caller's cancellation. A failed rollback is recorded and the
	// remaining rollbacks still run.
	res.State = StateRollingBack
	rbCtx := context.WithoutCancel(ctx)
	for j := len(applied) - 1; j >= 0; j-- {
		unit := units[applied[j]]
		ap, _ := r.Appliers.Get(unit.Setting.Backend)
		if err := ap.Rollback(rbCtx, unit, snaps[applied[j]]); err != nil {
			unit.Status = diff.StatusRollbackFailed
			unit.RollbackErr = err.Error()
			res.RollbackFailures++
			logger.Error("rollback failed, manual intervention required",
				"setting", unit.Setting.ID, "backup", shortID(unit.BackupHash), "err", err)
			continue
		}
		unit.Status = diff.StatusRolledBack
		logger.Info("rolled back", "setting", unit.Setting.ID)
	}

	res.State = StateRolledBack
	res.Finished = time.Now()
	return res
}

func (r *Runner) abort(res *Result, logger *log.Logger, reason string) *Result {
	res.State = StateAborted
	res.Reason = reason
	res.Finished = time.Now()
	logger.Error("transaction aborted before any change was applied", "reason", reason)
	return res
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

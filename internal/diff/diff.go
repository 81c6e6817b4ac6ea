// Package diff computes the ordered change set between a desired-state
// catalog and the live host.
package diff

import (
	"context"

	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/render"
)

// Status tracks a change unit through its transaction lifecycle.
type Status string

const (
	// StatusInSync marks a setting whose observed value already matches
	// desired; it is reported but never applied.
	StatusInSync         Status = "in-sync"
	StatusPending        Status = "pending"
	StatusApplied        Status = "applied"
	StatusVerified       Status = "verified"
	StatusApplyFailed    Status = "apply-failed"
	StatusVerifyFailed   Status = "verify-failed"
	StatusRolledBack     Status = "rolled-back"
	StatusRollbackFailed Status = "rollback-failed"
)

// ChangeUnit is one proposed mutation plus its lifecycle bookkeeping.
// The backend tag (Setting.Backend) is fixed at creation; the transaction
// runner mutates only Status, Reason, RollbackErr, and BackupHash.
type ChangeUnit struct {
	Setting catalog.Setting
	Before  probe.Observation
	Desired catalog.Value
	Status  Status

	// Reason records why an apply or verify failed.
	Reason string
	// RollbackErr records a failed rollback attempt; a unit with this set
	// needs manual intervention.
	RollbackErr string
	// BackupHash addresses the pre-change artifact in the backup store,
	// for file-backed backends.
	BackupHash string
}

// Engine compares the catalog against live probes.
type Engine struct {
	Probes *probe.Registry
	// BaseDir resolves relative template_file paths (the catalog's directory).
	BaseDir string
}

// Plan probes every catalog setting in declaration order and returns one
// change unit per setting: Pending when the observed value is not
// structurally equal to the desired value (or the probe came back Absent
// or Failed), InSync otherwise. Callers that mutate filter on Pending;
// carrying the settled units keeps report totals honest. Output order
// always matches catalog order; units are never grouped or reordered by
// backend, so repeated runs produce identical, diffable plans.
func (e *Engine) Plan(ctx context.Context, cat *catalog.Catalog) ([]*ChangeUnit, error) {
	var units []*ChangeUnit

	for _, s := range cat.Settings {
		desired, err := e.desiredValue(cat, s)
		if err != nil {
			// A broken template is a catalog error, not host drift.
			return nil, err
		}

		obs := e.Probes.Probe(ctx, s)
		status := StatusPending
		if obs.State == probe.StateObserved && settled(s, obs.Value, desired) {
			status = StatusInSync
		}

		units = append(units, &ChangeUnit{
			Setting: s,
			Before:  obs,
			Desired: desired,
			Status:  status,
		})
	}

	return units, nil
}

// settled reports whether an observed value satisfies the desired one.
// File content compares byte-for-byte, matching the file applier's hash
// verify; scalar normalization is reserved for sysctl and service values,
// where "256mb" and 268435456 mean the same thing.
func settled(s catalog.Setting, observed, desired catalog.Value) bool {
	if s.Backend == catalog.BackendFile {
		return observed.String() == desired.String()
	}
	return observed.Equal(desired)
}

// desiredValue resolves the target value for a setting. File settings derive
// their value from the rendered template so content drift is detected the
// same way as scalar drift.
func (e *Engine) desiredValue(cat *catalog.Catalog, s catalog.Setting) (catalog.Value, error) {
	if s.Backend == catalog.BackendFile {
		content, err := render.Setting(e.BaseDir, s, cat.Variables)
		if err != nil {
			return catalog.Value{}, err
		}
		return catalog.StringValue(string(content)), nil
	}
	return s.Value, nil
}

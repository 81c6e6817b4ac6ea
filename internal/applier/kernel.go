package applier

import (
	"context"
	"fmt"

	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/sandbox"
)

// Sysctl applies kernel parameters through the /proc/sys file interface.
// Writes are in place: /proc files do not support the rename dance.
type Sysctl struct {
	Root sandbox.Root
}

func (a *Sysctl) prober() *probe.Sysctl {
	return &probe.Sysctl{Root: a.Root}
}

// Snapshot re-probes the parameter so rollback has an authoritative value.
// A failed probe here is fatal: without a restorable value the transaction
// must not proceed.
func (a *Sysctl) Snapshot(ctx context.Context, unit *diff.ChangeUnit) (Snapshot, error) {
	obs := a.prober().Probe(ctx, unit.Setting)
	if obs.State == probe.StateFailed {
		return Snapshot{}, opErr("snapshot", unit.Setting.ID, fmt.Errorf("cannot capture restorable value: %s", obs.Reason))
	}
	return Snapshot{
		Observation: obs,
		Existed:     obs.State == probe.StateObserved,
	}, nil
}

// Apply writes the desired value to the live parameter.
func (a *Sysctl) Apply(ctx context.Context, unit *diff.ChangeUnit) error {
	path := probe.SysctlPath(unit.Setting.ID)
	value := unit.Desired.String() + "\n"
	if err := a.Root.WriteFileInPlace(path, []byte(value), 0o644); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	return nil
}

// Verify re-probes and compares structurally against the desired value.
func (a *Sysctl) Verify(ctx context.Context, unit *diff.ChangeUnit) error {
	obs := a.prober().Probe(ctx, unit.Setting)
	if obs.State != probe.StateObserved {
		return opErr("verify", unit.Setting.ID, fmt.Errorf("parameter unreadable after apply: %s", obs))
	}
	if !obs.Value.Equal(unit.Desired) {
		return opErr("verify", unit.Setting.ID, fmt.Errorf("value is %s, want %s", obs.Value, unit.Desired))
	}
	return nil
}

// Rollback restores the snapshot value, or removes the entry when the
// parameter did not exist before the transaction.
func (a *Sysctl) Rollback(ctx context.Context, unit *diff.ChangeUnit, snap Snapshot) error {
	path := probe.SysctlPath(unit.Setting.ID)
	if !snap.Existed {
		if err := a.Root.Remove(path); err != nil {
			return opErr("rollback", unit.Setting.ID, err)
		}
		return nil
	}
	value := snap.Observation.Value.String() + "\n"
	if err := a.Root.WriteFileInPlace(path, []byte(value), 0o644); err != nil {
		return opErr("rollback", unit.Setting.ID, err)
	}
	return nil
}

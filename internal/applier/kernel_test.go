package applier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/sandbox"
)

func sysctlUnit(id string, desired catalog.Value) *diff.ChangeUnit {
	return &diff.ChangeUnit{
		Setting: catalog.Setting{ID: id, Backend: catalog.BackendSysctl, Value: desired},
		Desired: desired,
		Status:  diff.StatusPending,
	}
}

func TestSysctlApplyVerifyRollbackRoundTrip(t *testing.T) {
	root := sandbox.New(t.TempDir())
	require.NoError(t, root.WriteFileInPlace("/proc/sys/net/core/somaxconn", []byte("128\n"), 0o644))

	a := &Sysctl{Root: root}
	unit := sysctlUnit("net.core.somaxconn", catalog.IntValue(65535))
	ctx := context.Background()

	snap, err := a.Snapshot(ctx, unit)
	require.NoError(t, err)
	assert.True(t, snap.Existed)
	assert.Equal(t, "128", snap.Observation.Value.String())

	require.NoError(t, a.Apply(ctx, unit))
	require.NoError(t, a.Verify(ctx, unit))

	data, err := root.ReadFile("/proc/sys/net/core/somaxconn")
	require.NoError(t, err)
	assert.Equal(t, "65535\n", string(data))

	// Rolling back restores the pre-apply observation.
	require.NoError(t, a.Rollback(ctx, unit, snap))
	obs := (&probe.Sysctl{Root: root}).Probe(ctx, unit.Setting)
	assert.Equal(t, "128", obs.Value.String())
}

func TestSysctlRollbackRemovesPreviouslyAbsent(t *testing.T) {
	root := sandbox.New(t.TempDir())
	a := &Sysctl{Root: root}
	unit := sysctlUnit("net.core.somaxconn", catalog.IntValue(1024))
	ctx := context.Background()

	snap, err := a.Snapshot(ctx, unit)
	require.NoError(t, err)
	assert.False(t, snap.Existed)

	require.NoError(t, a.Apply(ctx, unit))
	require.NoError(t, a.Verify(ctx, unit))

	require.NoError(t, a.Rollback(ctx, unit, snap))
	obs := (&probe.Sysctl{Root: root}).Probe(ctx, unit.Setting)
	assert.Equal(t, probe.StateAbsent, obs.State)
}

func TestSysctlVerifyMismatch(t *testing.T) {
	root := sandbox.New(t.TempDir())
	require.NoError(t, root.WriteFileInPlace("/proc/sys/vm/swappiness", []byte("60\n"), 0o644))

	a := &Sysctl{Root: root}
	unit := sysctlUnit("vm.swappiness", catalog.IntValue(10))

	err := a.Verify(context.Background(), unit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 10")

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "verify", be.Op)
	assert.Equal(t, "vm.swappiness", be.ID)
}

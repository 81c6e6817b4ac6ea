package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/txn"
)

func TestLoadMissingFileReturnsEmptyJournal(t *testing.T) {
	j, err := Load(filepath.Join(t.TempDir(), "tunectl.journal"))
	require.NoError(t, err)
	assert.Equal(t, 1, j.Version)
	assert.Empty(t, j.Transactions)

	_, ok := j.Last()
	assert.False(t, ok)
}

func TestAppendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunectl.journal")

	entry := Entry{
		ID:    "9f2c1a70-0000-0000-0000-000000000000",
		Time:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		State: "committed",
		Units: []UnitRecord{
			{ID: "vm.swappiness", Backend: "sysctl", Before: "60", After: "10", Status: "verified"},
		},
	}
	require.NoError(t, Append(path, entry))

	j, err := Load(path)
	require.NoError(t, err)
	require.Len(t, j.Transactions, 1)

	last, ok := j.Last()
	require.True(t, ok)
	assert.Equal(t, entry.ID, last.ID)
	assert.Equal(t, "committed", last.State)
	require.Len(t, last.Units, 1)
	assert.Equal(t, "vm.swappiness", last.Units[0].ID)
	assert.Equal(t, "60", last.Units[0].Before)
	assert.Equal(t, "10", last.Units[0].After)
}

func TestAppendTrimsToMaxEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunectl.journal")

	j := &Journal{Version: 1}
	for i := 0; i < MaxEntries; i++ {
		j.Transactions = append(j.Transactions, Entry{
			ID:    fmt.Sprintf("txn-%03d", i),
			State: "committed",
		})
	}
	require.NoError(t, Save(path, j))

	require.NoError(t, Append(path, Entry{ID: "txn-newest", State: "rolled-back"}))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, got.Transactions, MaxEntries)
	assert.Equal(t, "txn-001", got.Transactions[0].ID)
	last, _ := got.Last()
	assert.Equal(t, "txn-newest", last.ID)
}

func TestFromResult(t *testing.T) {
	unit := &diff.ChangeUnit{
		Setting:     catalog.Setting{ID: "redis.maxmemory", Backend: catalog.BackendService},
		Before:      probe.Observed(catalog.StringValue("64mb")),
		Desired:     catalog.StringValue("256mb"),
		Status:      diff.StatusRollbackFailed,
		Reason:      "reload handshake failed",
		RollbackErr: "restore failed",
		BackupHash:  "abc123",
	}
	res := &txn.Result{
		ID:       "txn-1",
		State:    txn.StateRolledBack,
		Units:    []*diff.ChangeUnit{unit},
		Finished: time.Now(),
	}

	entry := FromResult(res)
	assert.Equal(t, "txn-1", entry.ID)
	assert.Equal(t, "rolled-back", entry.State)
	require.Len(t, entry.Units, 1)
	rec := entry.Units[0]
	assert.Equal(t, "redis.maxmemory", rec.ID)
	assert.Equal(t, "service", rec.Backend)
	assert.Equal(t, "64mb", rec.Before)
	assert.Equal(t, "256mb", rec.After)
	assert.Equal(t, "rollback-failed", rec.Status)
	assert.Equal(t, "restore failed", rec.RollbackError)
	assert.Equal(t, "abc123", rec.BackupHash)
}

func TestLoadRejectsMalformedJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunectl.journal")
	require.NoError(t, os.WriteFile(path, []byte("version: 2\ntransactions:\n  - state: committed\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
	assert.Contains(t, verr.Errors[0], "unsupported version 2")
}

package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const smokeCatalog = `version: 1
settings:
  - id: vm.swappiness
    backend: sysctl
    value: 10
`

// setGlobals points the command globals at a temp workspace and restores
// them when the test finishes.
func setGlobals(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	oldCatalog, oldRoot, oldJournal, oldBackup := catalogPath, hostRootDir, journalPath, backupDir
	t.Cleanup(func() {
		catalogPath, hostRootDir, journalPath, backupDir = oldCatalog, oldRoot, oldJournal, oldBackup
	})

	// RunE is invoked directly, bypassing Execute, so give each command
	// the context Execute would normally set.
	for _, c := range []*cobra.Command{planCmd, applyCmd, statusCmd, validateCmd} {
		c.SetContext(context.Background())
	}

	catalogPath = filepath.Join(dir, "tunectl.yaml")
	hostRootDir = filepath.Join(dir, "root")
	journalPath = filepath.Join(dir, "tunectl.journal")
	backupDir = filepath.Join(dir, "backups")

	if err := os.WriteFile(catalogPath, []byte(smokeCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(hostRootDir, "proc/sys/vm"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(hostRootDir, "proc/sys/vm/swappiness"), []byte("60\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestPlanSignalsPendingChanges(t *testing.T) {
	setGlobals(t)

	err := planCmd.RunE(planCmd, nil)
	if !errors.Is(err, ErrPendingChanges) {
		t.Fatalf("want ErrPendingChanges, got %v", err)
	}
}

func TestApplyThenPlanIsClean(t *testing.T) {
	dir := setGlobals(t)

	if err := applyCmd.RunE(applyCmd, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "root/proc/sys/vm/swappiness"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "10\n" {
		t.Fatalf("swappiness = %q, want %q", string(data), "10\n")
	}

	if err := planCmd.RunE(planCmd, nil); err != nil {
		t.Fatalf("plan after apply: %v", err)
	}

	// A synced host applies cleanly again without starting a transaction.
	if err := applyCmd.RunE(applyCmd, nil); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if _, err := os.Stat(journalPath); err != nil {
		t.Fatalf("journal was not written: %v", err)
	}
}

func TestApplyDryRunLeavesHostAlone(t *testing.T) {
	dir := setGlobals(t)

	applyDryRun = true
	defer func() { applyDryRun = false }()
	if err := applyCmd.RunE(applyCmd, nil); err != nil {
		t.Fatalf("apply --dry-run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "root/proc/sys/vm/swappiness"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "60\n" {
		t.Fatalf("dry run mutated the host: %q", string(data))
	}
}

func TestStatusRunsWithEmptyJournal(t *testing.T) {
	setGlobals(t)

	if err := statusCmd.RunE(statusCmd, nil); err != nil {
		t.Fatalf("status: %v", err)
	}
}

func TestValidateReportsBrokenCatalog(t *testing.T) {
	setGlobals(t)

	if err := os.WriteFile(catalogPath, []byte("version: 1\nsettings:\n  - id: x\n    backend: mystery\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := validateCmd.RunE(validateCmd, nil); err == nil {
		t.Fatal("expected validation error")
	}
}

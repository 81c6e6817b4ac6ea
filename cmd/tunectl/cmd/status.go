package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/journal"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current drift and recent transactions",
	Long: `Probes every cataloged setting for drift, then reads the transaction
journal and shows when the host was last reconciled with the outcome of
each recent transaction. Verbose mode lists the per-setting outcomes of
the most recent transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		units, err := newDiffEngine(cat).Plan(cmd.Context(), cat)
		if err != nil {
			return err
		}
		pending := 0
		for _, unit := range units {
			if unit.Status == diff.StatusPending {
				pending++
			}
		}
		if pending == 0 {
			info("Drift: none, all %d settings in sync.", len(units))
		} else {
			info("Drift: %d of %d settings out of sync (run 'tunectl plan' for details).", pending, len(units))
		}
		info("")

		j, err := journal.Load(resolvedJournalPath())
		if err != nil {
			return err
		}

		if len(j.Transactions) == 0 {
			info("No transactions recorded. Run 'tunectl apply' first.")
			return nil
		}

		fmt.Printf("%-10s %-16s %-12s %s\n", "TXN", "WHEN", "STATE", "UNITS")
		for i := len(j.Transactions) - 1; i >= 0; i-- {
			entry := j.Transactions[i]
			id := entry.ID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Printf("%-10s %-16s %-12s %d\n",
				id, humanize.Time(entry.Time), entry.State, len(entry.Units))
		}

		last, _ := j.Last()
		detail("")
		for _, unit := range last.Units {
			detail("[%s] %s: %s -> %s", unit.Status, unit.ID, unit.Before, unit.After)
			if unit.RollbackError != "" {
				detail("  rollback failed: %s (backup %s)", unit.RollbackError, unit.BackupHash)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

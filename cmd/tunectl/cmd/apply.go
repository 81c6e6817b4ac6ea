package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/journal"
	"github.com/halvard/tunectl/internal/txn"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Converge the host onto the catalog",
	Long: `Plans pending changes and applies them in one transaction: current
state is snapshotted first, every change is verified after writing, and
any failure rolls the whole set back to the snapshots. The outcome is
recorded in the transaction journal.

Exit 0 only when the transaction committed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		units, err := newDiffEngine(cat).Plan(cmd.Context(), cat)
		if err != nil {
			return err
		}

		pending := make([]*diff.ChangeUnit, 0, len(units))
		for _, unit := range units {
			if unit.Status == diff.StatusPending {
				pending = append(pending, unit)
			}
		}

		if applyDryRun {
			info("Dry run — the host will not be touched.")
			renderOpts().RenderPlan(os.Stdout, units)
			return nil
		}

		if len(pending) == 0 {
			info("All %d settings in sync, nothing to apply.", len(units))
			return nil
		}

		store, err := newBackupStore()
		if err != nil {
			return err
		}
		logger := newLogger()

		runner := txn.NewRunner(newAppliers(cat, store, logger), logger)
		res := runner.Run(cmd.Context(), pending)

		if err := journal.Append(resolvedJournalPath(), journal.FromResult(res)); err != nil {
			errorf("could not journal transaction: %v", err)
		}

		renderOpts().RenderResult(os.Stdout, res)

		if !res.Committed() {
			return fmt.Errorf("transaction %s did not commit", res.ID)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "plan only, never touch the host")
	rootCmd.AddCommand(applyCmd)
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/halvard/tunectl/internal/diff"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what an apply would change",
	Long: `Probes the current state of every cataloged setting and prints the
changes an apply would make. The host is never mutated.

Exit 0 when everything is in sync, exit 2 when changes are pending.
Suitable for drift detection in CI or cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		units, err := newDiffEngine(cat).Plan(cmd.Context(), cat)
		if err != nil {
			return err
		}

		renderOpts().RenderPlan(os.Stdout, units)

		for _, unit := range units {
			if unit.Status == diff.StatusPending {
				return ErrPendingChanges
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}

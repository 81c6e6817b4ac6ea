package cmd

import (
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the catalog without touching the host",
	Long: `Parses the catalog and checks every setting's backend requirements:
referenced services must be declared, values must fit their backend, file
settings need exactly one template source. Exit non-zero on any error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		info("%s is valid: %d settings, %d services.",
			catalogPath, len(cat.Settings), len(cat.Services))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

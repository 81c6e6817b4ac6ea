package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	catalogPath string
	journalPath string
	hostRootDir string
	backupDir   string
	verbose     bool
	quiet       bool
	noColor     bool
)

// ErrPendingChanges signals that a plan found settings out of sync. main
// maps it to exit code 2 so scripts can tell "drift" from "failure".
var ErrPendingChanges = errors.New("pending changes")

var rootCmd = &cobra.Command{
	Use:   "tunectl",
	Short: "Declarative, transactional host tuning",
	Long: `tunectl converges a host onto a declared catalog of tunables: kernel
parameters, service configuration directives, and rendered files. Every
apply is one transaction: it snapshots current state first, verifies
every change after writing, and rolls everything back on any failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tunectl %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "tunectl.yaml", "path to catalog file")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "path to transaction journal (default: next to the catalog)")
	rootCmd.PersistentFlags().StringVar(&hostRootDir, "root", "/", "host root all managed paths are resolved under")
	rootCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "directory for pre-change backups (default: state dir)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, ErrPendingChanges) {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

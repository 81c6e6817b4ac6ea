package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"

	"github.com/halvard/tunectl/internal/applier"
	"github.com/halvard/tunectl/internal/backup"
	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/report"
	"github.com/halvard/tunectl/internal/sandbox"
)

// loadCatalog reads and validates the catalog file.
func loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", catalogPath, err)
	}
	return cat, nil
}

// resolvedJournalPath defaults the journal next to the catalog.
func resolvedJournalPath() string {
	if journalPath != "" {
		return journalPath
	}
	return filepath.Join(filepath.Dir(catalogPath), "tunectl.journal")
}

// hostRoot returns the sandbox all managed paths are resolved under.
func hostRoot() sandbox.Root {
	return sandbox.New(hostRootDir)
}

// newBackupStore opens the content-addressed backup store.
func newBackupStore() (*backup.Store, error) {
	dir := backupDir
	if dir == "" {
		dir = backup.DefaultDir()
	}
	return backup.Open(dir)
}

// newLogger builds the engine logger honoring --verbose and --quiet.
func newLogger() *log.Logger {
	logger := log.New(os.Stderr)
	switch {
	case verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// newProbes creates a probe registry with all built-in backends.
func newProbes(cat *catalog.Catalog) *probe.Registry {
	root := hostRoot()
	reg := probe.NewRegistry()
	reg.Register(catalog.BackendSysctl, &probe.Sysctl{Root: root})
	reg.Register(catalog.BackendService, probe.NewServiceConfig(root, cat.Services))
	reg.Register(catalog.BackendFile, &probe.FileContent{Root: root})
	return reg
}

// newAppliers creates an applier set with all built-in backends. Service
// check and reload commands come straight from the catalog.
func newAppliers(cat *catalog.Catalog, store *backup.Store, logger *log.Logger) *applier.Set {
	root := hostRoot()
	controllers := make(map[string]applier.Controller, len(cat.Services))
	for _, svc := range cat.Services {
		controllers[svc.Name] = &applier.ExecController{
			CheckCommand:  svc.CheckCommand,
			ReloadCommand: svc.ReloadCommand,
		}
	}

	set := applier.NewSet()
	set.Register(catalog.BackendSysctl, &applier.Sysctl{Root: root})
	set.Register(catalog.BackendService, applier.NewService(root, cat.Services, controllers, store, logger))
	set.Register(catalog.BackendFile, &applier.File{Root: root, Backups: store})
	return set
}

// newDiffEngine builds the planner; template_file paths resolve relative
// to the catalog.
func newDiffEngine(cat *catalog.Catalog) *diff.Engine {
	return &diff.Engine{
		Probes:  newProbes(cat),
		BaseDir: filepath.Dir(catalogPath),
	}
}

// renderOpts maps the global flags onto report rendering options.
func renderOpts() report.Options {
	if noColor {
		color.NoColor = true
	}
	return report.Options{Color: !noColor, Verbose: verbose}
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

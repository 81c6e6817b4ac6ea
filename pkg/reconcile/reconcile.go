// Package reconcile provides the public Go library API for tunectl.
//
// tunectl is a declarative host-configuration reconciler: a YAML catalog
// names the desired values of kernel parameters, service config
// directives, and rendered files, and the engine converges the host onto
// them transactionally. This package exposes constructors for embedding
// the reconciler in other Go programs.
//
// # Basic Usage
//
//	client, err := reconcile.New(reconcile.Options{
//	    CatalogPath: "tunectl.yaml",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Compute pending changes without touching the host
//	plan, err := client.Plan(ctx)
//
//	// Converge the host onto the catalog
//	report, err := client.Apply(ctx, reconcile.ApplyOptions{})
package reconcile

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halvard/tunectl/internal/applier"
	"github.com/halvard/tunectl/internal/backup"
	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/journal"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/sandbox"
	"github.com/halvard/tunectl/internal/txn"
)

// UnitResult is one setting's outcome, in plan or apply.
type UnitResult struct {
	ID      string
	Backend string
	Before  string
	After   string
	Status  string
	Reason  string

	// RollbackError is set when the unit's rollback attempt failed; the
	// named backup holds its pre-change content.
	RollbackError string
	Backup        string
}

// Plan is the set of changes an apply would make.
type Plan struct {
	Units []UnitResult
}

// Pending reports how many units are out of sync.
func (p *Plan) Pending() int {
	n := 0
	for _, u := range p.Units {
		if u.Status == string(diff.StatusPending) {
			n++
		}
	}
	return n
}

// Report is the outcome of an apply transaction.
type Report struct {
	TransactionID    string
	State            string
	Reason           string
	Units            []UnitResult
	Started          time.Time
	Finished         time.Time
	RollbackFailures int
}

// Committed reports whether every unit applied and verified.
func (r *Report) Committed() bool { return r.State == string(txn.StateCommitted) }

// ApplyOptions configures an apply operation.
type ApplyOptions struct {
	// DryRun plans only; the host is never touched.
	DryRun bool
}

// Options configures a tunectl client.
type Options struct {
	// CatalogPath is the path to the catalog file. Default: "tunectl.yaml".
	CatalogPath string

	// JournalPath is the transaction journal. Default: CatalogPath's
	// directory + "tunectl.journal".
	JournalPath string

	// BackupDir holds pre-change artifacts. If empty, uses the default
	// state directory.
	BackupDir string

	// Root confines every host path. Default "/"; tests point it at a
	// temp directory.
	Root string

	// Logger receives structured engine logs. Nil discards them.
	Logger *log.Logger
}

// Client is the main entry point for the tunectl library.
type Client struct {
	catalogPath string
	journalPath string
	root        sandbox.Root
	backups     *backup.Store
	logger      *log.Logger
}

// New creates a tunectl Client.
func New(opts Options) (*Client, error) {
	if opts.CatalogPath == "" {
		opts.CatalogPath = "tunectl.yaml"
	}
	if opts.JournalPath == "" {
		opts.JournalPath = filepath.Join(filepath.Dir(opts.CatalogPath), "tunectl.journal")
	}

	backupDir := opts.BackupDir
	if backupDir == "" {
		backupDir = backup.DefaultDir()
	}
	store, err := backup.Open(backupDir)
	if err != nil {
		return nil, fmt.Errorf("initializing backup store: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
		logger.SetLevel(log.FatalLevel)
	}

	return &Client{
		catalogPath: opts.CatalogPath,
		journalPath: opts.JournalPath,
		root:        sandbox.New(opts.Root),
		backups:     store,
		logger:      logger,
	}, nil
}

func (c *Client) loadCatalog() (*catalog.Catalog, error) {
	return catalog.Load(c.catalogPath)
}

func (c *Client) probes(cat *catalog.Catalog) *probe.Registry {
	reg := probe.NewRegistry()
	reg.Register(catalog.BackendSysctl, &probe.Sysctl{Root: c.root})
	reg.Register(catalog.BackendService, probe.NewServiceConfig(c.root, cat.Services))
	reg.Register(catalog.BackendFile, &probe.FileContent{Root: c.root})
	return reg
}

func (c *Client) appliers(cat *catalog.Catalog) *applier.Set {
	controllers := make(map[string]applier.Controller, len(cat.Services))
	for _, svc := range cat.Services {
		controllers[svc.Name] = &applier.ExecController{
			CheckCommand:  svc.CheckCommand,
			ReloadCommand: svc.ReloadCommand,
		}
	}

	set := applier.NewSet()
	set.Register(catalog.BackendSysctl, &applier.Sysctl{Root: c.root})
	set.Register(catalog.BackendService, applier.NewService(c.root, cat.Services, controllers, c.backups, c.logger))
	set.Register(catalog.BackendFile, &applier.File{Root: c.root, Backups: c.backups})
	return set
}

func (c *Client) plan(ctx context.Context, cat *catalog.Catalog) ([]*diff.ChangeUnit, error) {
	eng := &diff.Engine{
		Probes:  c.probes(cat),
		BaseDir: filepath.Dir(c.catalogPath),
	}
	return eng.Plan(ctx, cat)
}

// Plan probes current state and returns the changes an apply would make.
// The host is never mutated.
func (c *Client) Plan(ctx context.Context) (*Plan, error) {
	cat, err := c.loadCatalog()
	if err != nil {
		return nil, err
	}
	units, err := c.plan(ctx, cat)
	if err != nil {
		return nil, err
	}

	out := &Plan{}
	for _, unit := range units {
		out.Units = append(out.Units, unitResult(unit))
	}
	return out, nil
}

// Apply converges the host onto the catalog in one transaction and
// journals the outcome. With DryRun it behaves like Plan.
func (c *Client) Apply(ctx context.Context, opts ApplyOptions) (*Report, error) {
	cat, err := c.loadCatalog()
	if err != nil {
		return nil, err
	}
	units, err := c.plan(ctx, cat)
	if err != nil {
		return nil, err
	}

	pending := make([]*diff.ChangeUnit, 0, len(units))
	for _, unit := range units {
		if unit.Status == diff.StatusPending {
			pending = append(pending, unit)
		}
	}

	if opts.DryRun {
		rep := &Report{State: string(txn.StateIdle)}
		for _, unit := range units {
			rep.Units = append(rep.Units, unitResult(unit))
		}
		return rep, nil
	}

	runner := txn.NewRunner(c.appliers(cat), c.logger)
	res := runner.Run(ctx, pending)

	if err := journal.Append(c.journalPath, journal.FromResult(res)); err != nil {
		c.logger.Error("could not journal transaction", "err", err)
	}

	rep := &Report{
		TransactionID:    res.ID,
		State:            string(res.State),
		Reason:           res.Reason,
		Started:          res.Started,
		Finished:         res.Finished,
		RollbackFailures: res.RollbackFailures,
	}
	for _, unit := range res.Units {
		rep.Units = append(rep.Units, unitResult(unit))
	}
	return rep, nil
}

// Journal returns the persisted transaction history.
func (c *Client) Journal() (*journal.Journal, error) {
	return journal.Load(c.journalPath)
}

func unitResult(unit *diff.ChangeUnit) UnitResult {
	return UnitResult{
		ID:            unit.Setting.ID,
		Backend:       unit.Setting.Backend,
		Before:        unit.Before.String(),
		After:         unit.Desired.String(),
		Status:        string(unit.Status),
		Reason:        unit.Reason,
		RollbackError: unit.RollbackErr,
		Backup:        unit.BackupHash,
	}
}

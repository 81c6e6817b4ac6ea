package applier

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halvard/tunectl/internal/backup"
	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/diff"
	"github.com/halvard/tunectl/internal/probe"
	"github.com/halvard/tunectl/internal/sandbox"
)

// Controller is a service's own check and reload capability. CheckConfig
// validates a candidate config file without touching the running service;
// Reload signals the service and returns once it has acknowledged the new
// configuration (the reload handshake). Both are bounded by the context.
type Controller interface {
	CheckConfig(ctx context.Context, path string) error
	Reload(ctx context.Context) error
}

// Service applies directive changes to a service's configuration file.
//
// The one behavior that must never regress: validation happens against a
// temp rendering BEFORE the live artifact is replaced. A config that fails
// the service's own syntax check never reaches the live path.
type Service struct {
	Root        sandbox.Root
	Services    map[string]catalog.Service
	Controllers map[string]Controller
	Backups     *backup.Store
	Log         *log.Logger
}

// NewService builds the service applier over the catalog's declared services.
func NewService(root sandbox.Root, services []catalog.Service, controllers map[string]Controller, backups *backup.Store, logger *log.Logger) *Service {
	m := make(map[string]catalog.Service, len(services))
	for _, svc := range services {
		m[svc.Name] = svc
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Service{
		Root:        root,
		Services:    m,
		Controllers: controllers,
		Backups:     backups,
		Log:         logger,
	}
}

func (a *Service) lookup(unit *diff.ChangeUnit) (catalog.Service, Controller, error) {
	svc, ok := a.Services[unit.Setting.Service]
	if !ok {
		return catalog.Service{}, nil, fmt.Errorf("unknown service '%s'", unit.Setting.Service)
	}
	ctrl, ok := a.Controllers[svc.Name]
	if !ok {
		return catalog.Service{}, nil, fmt.Errorf("no controller for service '%s'", svc.Name)
	}
	return svc, ctrl, nil
}

// Snapshot captures the current config artifact and deposits it in the
// backup store. A read failure other than absence is fatal: rollback would
// have nothing to restore.
func (a *Service) Snapshot(ctx context.Context, unit *diff.ChangeUnit) (Snapshot, error) {
	svc, _, err := a.lookup(unit)
	if err != nil {
		return Snapshot{}, opErr("snapshot", unit.Setting.ID, err)
	}

	content, err := a.Root.ReadFile(svc.ConfigPath)
	if os.IsNotExist(err) {
		return Snapshot{Observation: unit.Before, Existed: false}, nil
	}
	if err != nil {
		return Snapshot{}, opErr("snapshot", unit.Setting.ID, err)
	}

	snap := Snapshot{Observation: unit.Before, Content: content, Existed: true}
	if a.Backups != nil {
		hash, err := a.Backups.Put(content)
		if err != nil {
			return Snapshot{}, opErr("snapshot", unit.Setting.ID, err)
		}
		snap.BackupHash = hash
	}
	return snap, nil
}

// Apply merges the desired directive into the artifact, validates the
// result via the service's syntax check, and only then swaps it over the
// live path. The live artifact is untouched if validation fails.
func (a *Service) Apply(ctx context.Context, unit *diff.ChangeUnit) error {
	svc, ctrl, err := a.lookup(unit)
	if err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}

	current, err := a.Root.ReadFile(svc.ConfigPath)
	if err != nil && !os.IsNotExist(err) {
		return opErr("apply", unit.Setting.ID, err)
	}

	merged := SetDirective(current, unit.Setting.DirectiveKey(), unit.Desired.String(), svc.AssignStyle())

	livePath, err := a.Root.Resolve(svc.ConfigPath)
	if err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(livePath), 0o755); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(livePath), ".tunectl-*.candidate")
	if err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(merged); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}
	if err := os.Chmod(tmpPath, a.artifactMode(livePath)); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}

	// Validate the candidate before the live config is replaced.
	if err := ctrl.CheckConfig(ctx, tmpPath); err != nil {
		return opErr("apply", unit.Setting.ID, fmt.Errorf("config check rejected candidate: %w", err))
	}

	if err := os.Rename(tmpPath, livePath); err != nil {
		return opErr("apply", unit.Setting.ID, err)
	}

	success = true
	a.Log.Debug("service config swapped", "service", svc.Name, "path", svc.ConfigPath, "directive", unit.Setting.DirectiveKey())
	return nil
}

// Verify performs the reload handshake, then confirms the directive landed.
// A handshake timeout or failure is a verification failure, never
// success-by-default.
func (a *Service) Verify(ctx context.Context, unit *diff.ChangeUnit) error {
	svc, ctrl, err := a.lookup(unit)
	if err != nil {
		return opErr("verify", unit.Setting.ID, err)
	}

	if err := ctrl.Reload(ctx); err != nil {
		return opErr("verify", unit.Setting.ID, fmt.Errorf("reload handshake failed: %w", err))
	}

	content, err := a.Root.ReadFile(svc.ConfigPath)
	if err != nil {
		return opErr("verify", unit.Setting.ID, err)
	}
	raw, ok := probe.ParseDirectives(content)[unit.Setting.DirectiveKey()]
	if !ok {
		return opErr("verify", unit.Setting.ID, fmt.Errorf("directive '%s' missing after apply", unit.Setting.DirectiveKey()))
	}
	if got := probe.ParseScalar(raw); !got.Equal(unit.Desired) {
		return opErr("verify", unit.Setting.ID, fmt.Errorf("directive '%s' is %s, want %s", unit.Setting.DirectiveKey(), got, unit.Desired))
	}
	return nil
}

// Rollback restores the pre-transaction artifact (or removes it if it did
// not exist) and reloads the service again so it runs the old config.
func (a *Service) Rollback(ctx context.Context, unit *diff.ChangeUnit, snap Snapshot) error {
	svc, ctrl, err := a.lookup(unit)
	if err != nil {
		return opErr("rollback", unit.Setting.ID, err)
	}

	if snap.Existed {
		if err := a.Root.WriteFile(svc.ConfigPath, snap.Content, a.artifactModeFor(svc)); err != nil {
			return opErr("rollback", unit.Setting.ID, err)
		}
	} else {
		if err := a.Root.Remove(svc.ConfigPath); err != nil {
			return opErr("rollback", unit.Setting.ID, err)
		}
	}

	if err := ctrl.Reload(ctx); err != nil {
		return opErr("rollback", unit.Setting.ID, fmt.Errorf("reload after restore failed: %w", err))
	}
	a.Log.Debug("service config restored", "service", svc.Name, "path", svc.ConfigPath)
	return nil
}

func (a *Service) artifactMode(livePath string) os.FileMode {
	if info, err := os.Stat(livePath); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

func (a *Service) artifactModeFor(svc catalog.Service) os.FileMode {
	if info, err := a.Root.Stat(svc.ConfigPath); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

// SetDirective rewrites a directive in a config file, preserving every
// other line. An existing directive is replaced in place, keeping its
// trailing semicolon if it had one; a new directive is appended.
func SetDirective(content []byte, key, value, style string) []byte {
	assign := key + " " + value
	if style == catalog.AssignEquals {
		assign = key + " = " + value
	}

	lines := strings.Split(string(content), "\n")
	replaced := false
	for i, line := range lines {
		if !directiveMatches(line, key) {
			continue
		}
		suffix := ""
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			suffix = ";"
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		lines[i] = indent + assign + suffix
		replaced = true
	}
	if replaced {
		return []byte(strings.Join(lines, "\n"))
	}

	out := string(content)
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out + assign + "\n")
}

// directiveMatches reports whether a config line assigns the given key.
func directiveMatches(line, key string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
		return false
	}
	if !strings.HasPrefix(trimmed, key) {
		return false
	}
	rest := trimmed[len(key):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '=' || rest[0] == ';'
}

// ExecController runs a service's own check and reload commands. The
// "{path}" placeholder in the check command is replaced with the candidate
// file path. Commands are bounded by Timeout on top of the caller's context.
type ExecController struct {
	CheckCommand  []string
	ReloadCommand []string
	Timeout       time.Duration
}

// DefaultControllerTimeout bounds check and reload command execution.
const DefaultControllerTimeout = 30 * time.Second

func (c *ExecController) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultControllerTimeout
	}
	return c.Timeout
}

// CheckConfig runs the syntax-check command against a candidate file.
// A service with no check command accepts every candidate.
func (c *ExecController) CheckConfig(ctx context.Context, path string) error {
	if len(c.CheckCommand) == 0 {
		return nil
	}
	argv := make([]string, len(c.CheckCommand))
	for i, arg := range c.CheckCommand {
		argv[i] = strings.ReplaceAll(arg, "{path}", path)
	}
	return c.run(ctx, argv)
}

// Reload signals the service to pick up the new configuration.
func (c *ExecController) Reload(ctx context.Context) error {
	if len(c.ReloadCommand) == 0 {
		return fmt.Errorf("no reload command configured")
	}
	return c.run(ctx, c.ReloadCommand)
}

func (c *ExecController) run(ctx context.Context, argv []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %s: %w", argv[0], msg, err)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

package catalog

import (
	"fmt"
	"os"
	"strconv"
)

// Backend tags select which prober and applier handle a setting.
const (
	BackendSysctl  = "sysctl"
	BackendService = "service"
	BackendFile    = "file"
)

// Directive assignment styles for service configuration files.
const (
	AssignSpace  = "space"
	AssignEquals = "equals"
)

// Catalog represents the tunectl.yaml desired-state document.
type Catalog struct {
	Version   int               `yaml:"version"`
	Variables map[string]string `yaml:"variables,omitempty"`
	Services  []Service         `yaml:"services,omitempty"`
	Settings  []Setting         `yaml:"settings"`
}

// Service declares a host service whose configuration file is managed
// through the service backend. Check and reload commands are the service's
// own capabilities; tunectl never parses their output beyond exit status.
type Service struct {
	Name          string   `yaml:"name"`
	ConfigPath    string   `yaml:"config_path"`
	Assign        string   `yaml:"assign,omitempty"` // "space" (default) or "equals"
	CheckCommand  []string `yaml:"check_command,omitempty"`
	ReloadCommand []string `yaml:"reload_command,omitempty"`
}

// Setting declares one desired host tunable. Which fields apply depends on
// the backend tag; Validate enforces the per-backend requirements.
type Setting struct {
	ID      string `yaml:"id"`
	Backend string `yaml:"backend"`
	Value   Value  `yaml:"value,omitempty"`

	// Service backend fields.
	Service string `yaml:"service,omitempty"`
	Key     string `yaml:"key,omitempty"`

	// File backend fields.
	Path         string            `yaml:"path,omitempty"`
	Template     string            `yaml:"template,omitempty"`
	TemplateFile string            `yaml:"template_file,omitempty"`
	Mode         string            `yaml:"mode,omitempty"`
	Vars         map[string]string `yaml:"vars,omitempty"`
}

// DirectiveKey returns the config directive name for a service setting.
// Defaults to the setting ID when no explicit key is given.
func (s Setting) DirectiveKey() string {
	if s.Key != "" {
		return s.Key
	}
	return s.ID
}

// FileMode parses the octal mode string for a file setting, defaulting to 0644.
func (s Setting) FileMode() (os.FileMode, error) {
	if s.Mode == "" {
		return 0o644, nil
	}
	n, err := strconv.ParseUint(s.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode '%s' for setting '%s': %w", s.Mode, s.ID, err)
	}
	return os.FileMode(n), nil
}

// ServiceByName looks up a declared service.
func (c *Catalog) ServiceByName(name string) (Service, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// AssignStyle returns the directive assignment style, defaulting to space.
func (s Service) AssignStyle() string {
	if s.Assign == "" {
		return AssignSpace
	}
	return s.Assign
}

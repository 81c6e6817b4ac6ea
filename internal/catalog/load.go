package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a tunectl.yaml catalog document.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	if errs := Validate(&cat); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &cat, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Catalog for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cat *Catalog) []string {
	var errs []string

	if cat.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d: only version 1 is supported", cat.Version))
	}

	if len(cat.Settings) == 0 {
		errs = append(errs, "at least one setting is required")
	}

	serviceNames := make(map[string]bool)
	for i, svc := range cat.Services {
		prefix := fmt.Sprintf("service[%d]", i)
		if svc.Name != "" {
			prefix = fmt.Sprintf("service '%s'", svc.Name)
		}

		if svc.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: 'name' is required", prefix))
		} else if serviceNames[svc.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate service name '%s'", prefix, svc.Name))
		} else {
			serviceNames[svc.Name] = true
		}

		if svc.ConfigPath == "" {
			errs = append(errs, fmt.Sprintf("%s: 'config_path' is required", prefix))
		}
		switch svc.Assign {
		case "", AssignSpace, AssignEquals:
		default:
			errs = append(errs, fmt.Sprintf("%s: invalid assign style '%s': must be one of: space, equals", prefix, svc.Assign))
		}
	}

	settingIDs := make(map[string]bool)
	for i, s := range cat.Settings {
		prefix := fmt.Sprintf("setting[%d]", i)
		if s.ID != "" {
			prefix = fmt.Sprintf("setting '%s'", s.ID)
		}

		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("%s: 'id' is required", prefix))
		} else if settingIDs[s.ID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate setting id '%s'", prefix, s.ID))
		} else {
			settingIDs[s.ID] = true
		}

		errs = append(errs, validateSetting(s, prefix, serviceNames)...)
	}

	return errs
}

func validateSetting(s Setting, prefix string, serviceNames map[string]bool) []string {
	var errs []string

	switch s.Backend {
	case BackendSysctl:
		if s.Value.IsZero() {
			errs = append(errs, fmt.Sprintf("%s: sysctl backend requires 'value'", prefix))
		}
		if s.Value.Kind() == KindRecord {
			errs = append(errs, fmt.Sprintf("%s: sysctl backend requires a scalar value", prefix))
		}
	case BackendService:
		if s.Service == "" {
			errs = append(errs, fmt.Sprintf("%s: service backend requires 'service'", prefix))
		} else if !serviceNames[s.Service] {
			errs = append(errs, fmt.Sprintf("%s: references undeclared service '%s'", prefix, s.Service))
		}
		if s.Value.IsZero() {
			errs = append(errs, fmt.Sprintf("%s: service backend requires 'value'", prefix))
		}
	case BackendFile:
		if s.Path == "" {
			errs = append(errs, fmt.Sprintf("%s: file backend requires 'path'", prefix))
		}
		if s.Template == "" && s.TemplateFile == "" {
			errs = append(errs, fmt.Sprintf("%s: file backend requires one of 'template' or 'template_file'", prefix))
		}
		if s.Template != "" && s.TemplateFile != "" {
			errs = append(errs, fmt.Sprintf("%s: 'template' and 'template_file' are mutually exclusive", prefix))
		}
		if _, err := s.FileMode(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
	case "":
		errs = append(errs, fmt.Sprintf("%s: 'backend' is required: must be one of: sysctl, service, file", prefix))
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown backend '%s': must be one of: sysctl, service, file", prefix, s.Backend))
	}

	return errs
}

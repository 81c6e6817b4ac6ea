// Package render produces file artifacts from catalog templates.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/halvard/tunectl/internal/catalog"
)

// Content applies Go text/template variable substitution to template text.
// Unknown variables are an error so a typo in the catalog fails loudly
// instead of writing a half-rendered artifact.
func Content(tmpl []byte, vars map[string]string) ([]byte, error) {
	parsed, err := template.New("").Option("missingkey=error").Parse(string(tmpl))
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := parsed.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	return buf.Bytes(), nil
}

// Setting renders the desired artifact content for a file-backend setting.
// Inline templates come from the catalog document; template_file paths are
// resolved relative to baseDir (the catalog's directory).
func Setting(baseDir string, s catalog.Setting, globalVars map[string]string) ([]byte, error) {
	var tmpl []byte
	switch {
	case s.Template != "":
		tmpl = []byte(s.Template)
	case s.TemplateFile != "":
		path := s.TemplateFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading template for setting '%s': %w", s.ID, err)
		}
		tmpl = data
	default:
		return nil, fmt.Errorf("setting '%s' has no template", s.ID)
	}

	out, err := Content(tmpl, MergeVars(globalVars, s.Vars))
	if err != nil {
		return nil, fmt.Errorf("setting '%s': %w", s.ID, err)
	}
	return out, nil
}

// MergeVars merges catalog-level variables with per-setting vars.
// Per-setting vars override catalog vars.
func MergeVars(global, local map[string]string) map[string]string {
	merged := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}

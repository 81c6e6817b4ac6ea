package probe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/sandbox"
)

// ServiceConfig probes directive values in a service's live configuration
// file (redis.conf "key value" style or ini-ish "key = value" style).
type ServiceConfig struct {
	Root     sandbox.Root
	Services map[string]catalog.Service
}

// NewServiceConfig builds a prober over the catalog's declared services.
func NewServiceConfig(root sandbox.Root, services []catalog.Service) *ServiceConfig {
	m := make(map[string]catalog.Service, len(services))
	for _, svc := range services {
		m[svc.Name] = svc
	}
	return &ServiceConfig{Root: root, Services: m}
}

// Probe reads the directive for the setting from the service config file.
// A missing file or missing directive is Absent, not a failure.
func (p *ServiceConfig) Probe(ctx context.Context, s catalog.Setting) Observation {
	svc, ok := p.Services[s.Service]
	if !ok {
		return Failed(fmt.Sprintf("setting '%s' references unknown service '%s'", s.ID, s.Service))
	}

	data, err := p.Root.ReadFile(svc.ConfigPath)
	if os.IsNotExist(err) {
		return Absent()
	}
	if err != nil {
		return Failed(err.Error())
	}

	directives := ParseDirectives(data)
	raw, ok := directives[s.DirectiveKey()]
	if !ok {
		return Absent()
	}
	return Observed(ParseScalar(raw))
}

// ParseDirectives extracts "key value" and "key = value" directives from a
// config file, tolerating comments, blank lines, and trailing semicolons.
// The last occurrence of a key wins, matching how most daemons read their
// configuration.
func ParseDirectives(data []byte) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		line = strings.TrimSuffix(line, ";")

		var key, value string
		if i := strings.Index(line, "="); i >= 0 {
			key = strings.TrimSpace(line[:i])
			value = strings.TrimSpace(line[i+1:])
		} else {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			key = fields[0]
			value = strings.Join(fields[1:], " ")
		}
		if key == "" {
			continue
		}
		out[key] = strings.Trim(value, `"`)
	}
	return out
}

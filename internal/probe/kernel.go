package probe

import (
	"context"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/sandbox"
)

// Sysctl probes kernel parameters through the /proc/sys file interface.
// The setting ID uses the dotted sysctl form ("net.core.somaxconn").
type Sysctl struct {
	Root sandbox.Root
}

// SysctlPath maps a dotted parameter name to its /proc/sys host path.
func SysctlPath(id string) string {
	return path.Join("/proc/sys", strings.ReplaceAll(id, ".", "/"))
}

// Probe reads the live parameter value. Multi-column parameters (e.g.
// net.ipv4.tcp_rmem) are observed as a single whitespace-normalized string.
func (p *Sysctl) Probe(ctx context.Context, s catalog.Setting) Observation {
	data, err := p.Root.ReadFile(SysctlPath(s.ID))
	if os.IsNotExist(err) {
		return Absent()
	}
	if err != nil {
		return Failed(err.Error())
	}

	return Observed(ParseScalar(string(data)))
}

// ParseScalar canonicalizes a raw probed string into a typed value:
// integers become int-kinded, everything else stays a trimmed string with
// internal runs of whitespace collapsed to single spaces.
func ParseScalar(raw string) catalog.Value {
	trimmed := strings.Join(strings.Fields(raw), " ")
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return catalog.IntValue(n)
	}
	return catalog.StringValue(trimmed)
}

package probe

import (
	"context"
	"os"

	"github.com/halvard/tunectl/internal/catalog"
	"github.com/halvard/tunectl/internal/sandbox"
)

// FileContent probes managed file artifacts by reading their full content.
// The diff engine compares content structurally (byte equality via the
// string value), so any drift in a rendered file shows up as a change.
type FileContent struct {
	Root sandbox.Root
}

// Probe reads the current file content at the setting's path.
func (p *FileContent) Probe(ctx context.Context, s catalog.Setting) Observation {
	data, err := p.Root.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return Absent()
	}
	if err != nil {
		return Failed(err.Error())
	}
	return Observed(catalog.StringValue(string(data)))
}

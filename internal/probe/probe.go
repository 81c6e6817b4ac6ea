// Package probe reads the current value of host settings.
//
// Probes never mutate host state and fail soft: any read problem becomes a
// Failed observation, never a returned error. Callers treat Failed the same
// as "differs from desired" so a broken probe results in an attempted
// change, not a silently skipped one.
package probe

import (
	"context"
	"fmt"

	"github.com/halvard/tunectl/internal/catalog"
)

// State classifies an observation outcome.
type State int

const (
	// StateObserved means the setting exists and its value was read.
	StateObserved State = iota
	// StateAbsent means the setting is not currently present on the host.
	StateAbsent
	// StateFailed means the probe itself failed; the value is unknown.
	StateFailed
)

// Observation is the result of probing one setting on the live host.
type Observation struct {
	State  State
	Value  catalog.Value
	Reason string
}

// Observed builds a successful observation.
func Observed(v catalog.Value) Observation {
	return Observation{State: StateObserved, Value: v}
}

// Absent builds an observation for a setting that does not exist yet.
func Absent() Observation {
	return Observation{State: StateAbsent}
}

// Failed builds an observation for a probe that could not complete.
func Failed(reason string) Observation {
	return Observation{State: StateFailed, Reason: reason}
}

// String renders the observation for reports.
func (o Observation) String() string {
	switch o.State {
	case StateAbsent:
		return "(absent)"
	case StateFailed:
		return "(probe failed: " + o.Reason + ")"
	default:
		return o.Value.String()
	}
}

// Prober reads the current value of a single setting.
type Prober interface {
	Probe(ctx context.Context, s catalog.Setting) Observation
}

// Registry dispatches probes by backend tag.
type Registry struct {
	probers map[string]Prober
}

// NewRegistry creates an empty prober registry.
func NewRegistry() *Registry {
	return &Registry{probers: make(map[string]Prober)}
}

// Register adds a prober for a backend tag.
func (r *Registry) Register(backend string, p Prober) {
	r.probers[backend] = p
}

// Get returns the prober for a backend tag.
func (r *Registry) Get(backend string) (Prober, error) {
	p, ok := r.probers[backend]
	if !ok {
		return nil, fmt.Errorf("no prober registered for backend '%s'", backend)
	}
	return p, nil
}

// Probe dispatches to the backend's prober. An unregistered backend is a
// failed observation, keeping the fail-soft contract at the boundary.
func (r *Registry) Probe(ctx context.Context, s catalog.Setting) Observation {
	p, err := r.Get(s.Backend)
	if err != nil {
		return Failed(err.Error())
	}
	return p.Probe(ctx, s)
}

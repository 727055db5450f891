package execstate

import (
	"fmt"

	"github.com/slipwayhq/slipway/pkg/evaluator"
	"github.com/slipwayhq/slipway/pkg/graph"
	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/rig"
)

// NewSnapshot builds the initial execution snapshot for a parsed rig,
// given the already-resolved and schema-compiled component definition
// for every handle's rigging reference.
func NewSnapshot(r *rig.Rig, components map[primitives.Handle]*rig.Component) (*Snapshot, error) {
	states := make(map[primitives.Handle]*ComponentState, len(r.Rigging))
	for h, cr := range r.Rigging {
		comp, ok := components[h]
		if !ok {
			return nil, fmt.Errorf("execstate: no resolved component for handle %q", h)
		}
		raw := cr.Input
		if raw == nil {
			raw = []byte("null")
		}
		states[h] = &ComponentState{
			Handle:       h,
			Rigging:      cr,
			Component:    comp,
			RawInput:     raw,
			Dependencies: evaluator.ExtractDependencies(raw),
		}
	}

	s := &Snapshot{
		Description: r.Description,
		Constants:   r.Constants,
		States:      states,
	}
	if err := recompute(s); err != nil {
		return nil, err
	}
	return s, nil
}

// buildEdges derives the graph.Edges view of the current dependency sets.
func buildEdges(s *Snapshot) graph.Edges {
	edges := make(graph.Edges, len(s.States))
	for h, cs := range s.States {
		edges[h] = cs.Dependencies
	}
	return edges
}

// buildProjection assembles the serialized state projection (§4.5 step
// 2) from every handle's currently-effective input/output.
func buildProjection(s *Snapshot) ([]byte, error) {
	handles := make(map[primitives.Handle]evaluator.HandleProjection, len(s.States))
	for h, cs := range s.States {
		hp := evaluator.HandleProjection{}
		if cs.ExecutionInput != nil {
			hp.Input = cs.ExecutionInput.Value
		}
		if out, ok := cs.EffectiveOutput(); ok {
			hp.Output = out
		}
		handles[h] = hp
	}
	return evaluator.BuildProjection(s.Description, s.Constants, handles)
}

package execstate

import (
	"fmt"

	"github.com/slipwayhq/slipway/pkg/evaluator"
	"github.com/slipwayhq/slipway/pkg/graph"
	"github.com/slipwayhq/slipway/pkg/iovalidate"
	"github.com/slipwayhq/slipway/pkg/primitives"
)

// Step applies instr to s and returns the resulting snapshot. On any
// failure s is left untouched — StepFailed, Cycle, and
// ComponentValidationFailed are all non-recoverable per §7, so the
// caller always discards the attempted mutation on error (Open Question
// (b): an input-schema validation failure aborts the step).
func Step(s *Snapshot, instr Instruction) (*Snapshot, error) {
	next := s.clone()

	if err := instr.apply(next); err != nil {
		return nil, err
	}

	if so, ok := instr.(SetOutput); ok {
		cs := next.States[so.Handle]
		if cs.Component != nil && cs.Component.Output != nil {
			if err := iovalidate.Validate(so.Handle, iovalidate.Output, cs.Component.Output, cs.ExecutionOutput.Value); err != nil {
				return nil, err
			}
		}
	}

	if err := recompute(next); err != nil {
		return nil, err
	}
	return next, nil
}

// recompute implements §4.5's recomputation algorithm: rebuild
// dependency-derived order/groups, project the current state, and walk
// the topological order filling in execution_input wherever every
// dependency now has an effective output.
func recompute(s *Snapshot) error {
	for h, cs := range s.States {
		deps := evaluator.ExtractDependencies(cs.EffectiveInput())
		if !sameHandleSet(deps, cs.Dependencies) {
			next := withState(cs)
			next.Dependencies = deps
			s.States[h] = next
		}
	}

	edges := buildEdges(s)
	if cyc := graph.DetectCycle(edges); cyc != nil {
		return fmt.Errorf("execstate: ValidationFailed(%q)", cyc.Error())
	}
	s.Order = graph.TopologicalSort(edges)
	s.Groups = graph.WeaklyConnectedGroups(edges)

	projection, err := buildProjection(s)
	if err != nil {
		return err
	}

	for _, h := range s.Order {
		cs := s.States[h]
		if _, hasOutput := cs.EffectiveOutput(); hasOutput {
			continue
		}

		value, err := evaluator.Evaluate(cs.EffectiveInput(), projection)
		if err != nil {
			if _, unresolved := err.(*evaluator.ResolveJsonPathFailedError); unresolved {
				if cs.ExecutionInput != nil {
					next := withState(cs)
					next.ExecutionInput = nil
					s.States[h] = next
				}
				continue
			}
			return err
		}

		if cs.Component != nil && cs.Component.Input != nil {
			if err := iovalidate.Validate(h, iovalidate.Input, cs.Component.Input, value); err != nil {
				return err
			}
		}

		meta, err := ComputeMetadata(value)
		if err != nil {
			return err
		}

		next := withState(cs)
		next.ExecutionInput = &ValueWithMetadata{Value: value, Metadata: meta}
		s.States[h] = next

		// re-read projection contribution: a handle's own input becomes
		// addressable to others once computed.
		projection, err = buildProjection(s)
		if err != nil {
			return err
		}
	}

	return nil
}

func sameHandleSet(a, b map[primitives.Handle]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for h := range a {
		if _, ok := b[h]; !ok {
			return false
		}
	}
	return true
}

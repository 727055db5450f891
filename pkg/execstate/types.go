// Package execstate implements the Execution State (§4.5): an immutable
// snapshot of every component's input/output overrides and computed
// values, advanced one instruction at a time, each producing a new
// snapshot.
package execstate

import (
	"encoding/json"
	"time"

	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/rig"
)

// ValueWithMetadata pairs a JSON value with its content-hash metadata.
type ValueWithMetadata struct {
	Value    json.RawMessage
	Metadata JsonMetadata
}

// RunMetadata records the four phase durations a single component run
// took, per §3 and SPEC_FULL supplement 2.
type RunMetadata struct {
	PrepareInput     time.Duration
	PrepareComponent time.Duration
	Call             time.Duration
	ProcessOutput    time.Duration
}

// ExecutionOutput is a component's computed output plus the input hash
// that produced it, so staleness is detectable (§3 invariant 4).
type ExecutionOutput struct {
	Value         json.RawMessage
	InputHashUsed string
	Metadata      JsonMetadata
	RunMetadata   RunMetadata
}

// ComponentState is the per-handle record within an execution snapshot
// (§3 "ComponentState").
type ComponentState struct {
	Handle       primitives.Handle
	Rigging      rig.ComponentRigging
	Component    *rig.Component
	RawInput     json.RawMessage
	Dependencies map[primitives.Handle]struct{}

	ExecutionInput *ValueWithMetadata
	InputOverride  *json.RawMessage

	ExecutionOutput *ExecutionOutput
	OutputOverride  *ValueWithMetadata
}

// EffectiveInput is input_override.or(raw_input) (§3).
func (c *ComponentState) EffectiveInput() json.RawMessage {
	if c.InputOverride != nil {
		return *c.InputOverride
	}
	return c.RawInput
}

// EffectiveOutput is output_override.or(execution_output) (§3).
func (c *ComponentState) EffectiveOutput() (json.RawMessage, bool) {
	if c.OutputOverride != nil {
		return c.OutputOverride.Value, true
	}
	if c.ExecutionOutput != nil {
		return c.ExecutionOutput.Value, true
	}
	return nil, false
}

// Snapshot is the immutable execution state, replaced wholesale by
// every step (§3 Lifecycles).
type Snapshot struct {
	Description string
	Constants   json.RawMessage

	States map[primitives.Handle]*ComponentState
	Order  []primitives.Handle
	Groups [][]primitives.Handle
}

// clone returns a shallow structural copy of the snapshot with its own
// States map, so a step's mutations never touch the snapshot it was
// derived from. ComponentState values themselves are copied on write
// the first time a step touches them (see withState).
func (s *Snapshot) clone() *Snapshot {
	states := make(map[primitives.Handle]*ComponentState, len(s.States))
	for h, cs := range s.States {
		states[h] = cs
	}
	return &Snapshot{
		Description: s.Description,
		Constants:   s.Constants,
		States:      states,
		Order:       append([]primitives.Handle(nil), s.Order...),
		Groups:      append([][]primitives.Handle(nil), s.Groups...),
	}
}

// withState returns a copy of cs for in-place-looking mutation without
// touching the original snapshot's ComponentState.
func withState(cs *ComponentState) *ComponentState {
	copied := *cs
	deps := make(map[primitives.Handle]struct{}, len(cs.Dependencies))
	for h := range cs.Dependencies {
		deps[h] = struct{}{}
	}
	copied.Dependencies = deps
	return &copied
}

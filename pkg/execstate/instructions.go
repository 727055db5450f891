package execstate

import (
	"encoding/json"
	"fmt"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

// Instruction is the closed set of five mutations a Snapshot can be
// advanced by (§4.5).
type Instruction interface {
	apply(s *Snapshot) error
}

// SetInputOverride replaces the input template used for a handle.
type SetInputOverride struct {
	Handle primitives.Handle
	Value  json.RawMessage
}

func (i SetInputOverride) apply(s *Snapshot) error {
	cs, ok := s.States[i.Handle]
	if !ok {
		return fmt.Errorf("execstate: StepFailed: unknown handle %q", i.Handle)
	}
	next := withState(cs)
	v := i.Value
	next.InputOverride = &v
	s.States[i.Handle] = next
	return nil
}

// ClearInputOverride reverses SetInputOverride.
type ClearInputOverride struct {
	Handle primitives.Handle
}

func (i ClearInputOverride) apply(s *Snapshot) error {
	cs, ok := s.States[i.Handle]
	if !ok {
		return fmt.Errorf("execstate: StepFailed: unknown handle %q", i.Handle)
	}
	next := withState(cs)
	next.InputOverride = nil
	s.States[i.Handle] = next
	return nil
}

// SetOutputOverride stores an override output value for a handle.
type SetOutputOverride struct {
	Handle primitives.Handle
	Value  json.RawMessage
}

func (i SetOutputOverride) apply(s *Snapshot) error {
	cs, ok := s.States[i.Handle]
	if !ok {
		return fmt.Errorf("execstate: StepFailed: unknown handle %q", i.Handle)
	}
	meta, err := ComputeMetadata(i.Value)
	if err != nil {
		return err
	}
	next := withState(cs)
	next.OutputOverride = &ValueWithMetadata{Value: i.Value, Metadata: meta}
	s.States[i.Handle] = next
	return nil
}

// ClearOutputOverride reverses SetOutputOverride.
type ClearOutputOverride struct {
	Handle primitives.Handle
}

func (i ClearOutputOverride) apply(s *Snapshot) error {
	cs, ok := s.States[i.Handle]
	if !ok {
		return fmt.Errorf("execstate: StepFailed: unknown handle %q", i.Handle)
	}
	next := withState(cs)
	next.OutputOverride = nil
	s.States[i.Handle] = next
	return nil
}

// SetOutput requires the handle's execution_input to be present; it
// stores an ExecutionOutput whose InputHashUsed pins the execution_input
// that was current at the time, and — per Open Question (a) — clears
// any output_override on the same handle.
type SetOutput struct {
	Handle      primitives.Handle
	Value       json.RawMessage
	RunMetadata RunMetadata
}

func (i SetOutput) apply(s *Snapshot) error {
	cs, ok := s.States[i.Handle]
	if !ok {
		return fmt.Errorf("execstate: StepFailed: unknown handle %q", i.Handle)
	}
	if cs.ExecutionInput == nil {
		return fmt.Errorf("execstate: StepFailed: SetOutput(%q): execution_input is not set", i.Handle)
	}

	meta, err := ComputeMetadata(i.Value)
	if err != nil {
		return err
	}

	next := withState(cs)
	next.ExecutionOutput = &ExecutionOutput{
		Value:         i.Value,
		InputHashUsed: cs.ExecutionInput.Metadata.Hash,
		Metadata:      meta,
		RunMetadata:   i.RunMetadata,
	}
	next.OutputOverride = nil
	s.States[i.Handle] = next
	return nil
}

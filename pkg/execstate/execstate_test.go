package execstate

import (
	"encoding/json"
	"testing"

	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/rig"
)

func testRig(t *testing.T, doc string) (*rig.Rig, map[primitives.Handle]*rig.Component) {
	t.Helper()
	res, err := rig.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	components := make(map[primitives.Handle]*rig.Component, len(res.Rig.Rigging))
	for h := range res.Rig.Rigging {
		components[h] = &rig.Component{}
	}
	return res.Rig, components
}

func TestNewSnapshot_LinearChain_OnlyRootHasInput(t *testing.T) {
	r, components := testRig(t, `{
		"rigging": {
			"a": {"component": "passthrough"},
			"b": {"component": "passthrough", "input": {"v": "$$.a"}},
			"c": {"component": "passthrough", "input": {"v": "$$.b"}}
		}
	}`)
	snap, err := NewSnapshot(r, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.States["a"].ExecutionInput == nil {
		t.Errorf("expected a to have execution_input")
	}
	if snap.States["b"].ExecutionInput != nil {
		t.Errorf("expected b to have no execution_input yet")
	}
	if snap.States["c"].ExecutionInput != nil {
		t.Errorf("expected c to have no execution_input yet")
	}
}

func TestStep_LinearChain_CascadesOutputs(t *testing.T) {
	r, components := testRig(t, `{
		"rigging": {
			"a": {"component": "passthrough"},
			"b": {"component": "passthrough", "input": {"v": "$$.a"}},
			"c": {"component": "passthrough", "input": {"v": "$$.b"}}
		}
	}`)
	snap, err := NewSnapshot(r, components)
	if err != nil {
		t.Fatal(err)
	}

	snap, err = Step(snap, SetOutput{Handle: "a", Value: json.RawMessage("1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(snap.States["b"].ExecutionInput.Value) != `{"v":1}` {
		t.Errorf("got %s", snap.States["b"].ExecutionInput.Value)
	}

	snap, err = Step(snap, SetOutput{Handle: "b", Value: json.RawMessage("2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(snap.States["c"].ExecutionInput.Value) != `{"v":2}` {
		t.Errorf("got %s", snap.States["c"].ExecutionInput.Value)
	}

	snap, err = Step(snap, SetOutput{Handle: "c", Value: json.RawMessage("3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := snap.States["c"].EffectiveOutput()
	if !ok || string(out) != "3" {
		t.Errorf("got %s, ok=%v", out, ok)
	}
	if snap.States["c"].ExecutionOutput.InputHashUsed != snap.States["c"].ExecutionInput.Metadata.Hash {
		t.Errorf("input hash used should match c's execution_input hash")
	}
}

func TestStep_SetOutput_RequiresExecutionInput(t *testing.T) {
	r, components := testRig(t, `{
		"rigging": {
			"a": {"component": "passthrough"},
			"b": {"component": "passthrough", "input": {"v": "$$.a"}}
		}
	}`)
	snap, err := NewSnapshot(r, components)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Step(snap, SetOutput{Handle: "b", Value: json.RawMessage("1")}); err == nil {
		t.Errorf("expected StepFailed: b has no execution_input yet")
	}
}

func TestStep_SetOutput_Idempotent(t *testing.T) {
	r, components := testRig(t, `{"rigging": {"a": {"component": "passthrough"}}}`)
	snap, err := NewSnapshot(r, components)
	if err != nil {
		t.Fatal(err)
	}
	snap, err = Step(snap, SetOutput{Handle: "a", Value: json.RawMessage("1")})
	if err != nil {
		t.Fatal(err)
	}
	snap, err = Step(snap, SetOutput{Handle: "a", Value: json.RawMessage("1")})
	if err != nil {
		t.Fatal(err)
	}
	out, _ := snap.States["a"].EffectiveOutput()
	if string(out) != "1" {
		t.Errorf("got %s", out)
	}
}

func TestStep_OutputOverride_ClearRestoresPreOverrideState(t *testing.T) {
	r, components := testRig(t, `{"rigging": {"a": {"component": "passthrough"}}}`)
	snap, err := NewSnapshot(r, components)
	if err != nil {
		t.Fatal(err)
	}
	snap, err = Step(snap, SetOutput{Handle: "a", Value: json.RawMessage("1")})
	if err != nil {
		t.Fatal(err)
	}

	overridden, err := Step(snap, SetOutputOverride{Handle: "a", Value: json.RawMessage("99")})
	if err != nil {
		t.Fatal(err)
	}
	out, _ := overridden.States["a"].EffectiveOutput()
	if string(out) != "99" {
		t.Errorf("got %s", out)
	}

	restored, err := Step(overridden, ClearOutputOverride{Handle: "a"})
	if err != nil {
		t.Fatal(err)
	}
	out, _ = restored.States["a"].EffectiveOutput()
	if string(out) != "1" {
		t.Errorf("got %s, want pre-override state restored", out)
	}
}

func TestNewSnapshot_CycleDetected(t *testing.T) {
	r, components := testRig(t, `{
		"rigging": {
			"a": {"component": "passthrough", "input": {"x": "$$.b"}},
			"b": {"component": "passthrough", "input": {"x": "$$.a"}}
		}
	}`)
	_, err := NewSnapshot(r, components)
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestNewSnapshot_WeaklyConnectedGroupsDeterministic(t *testing.T) {
	r, components := testRig(t, `{
		"rigging": {
			"a": {"component": "passthrough"},
			"b": {"component": "passthrough", "input": {"x": "$$.a"}},
			"c": {"component": "passthrough", "input": {"x": "$$.b"}},
			"d": {"component": "passthrough"},
			"e": {"component": "passthrough", "input": {"x": "$$.d"}},
			"f": {"component": "passthrough"}
		}
	}`)
	snap, err := NewSnapshot(r, components)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Groups) != 3 {
		t.Fatalf("got %d groups", len(snap.Groups))
	}
}

func TestComputeMetadata_StableOnUnchangedInput(t *testing.T) {
	m1, err := ComputeMetadata(json.RawMessage(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	m2, err := ComputeMetadata(json.RawMessage(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if m1.Hash != m2.Hash {
		t.Errorf("expected key-order-independent hash, got %s vs %s", m1.Hash, m2.Hash)
	}
}

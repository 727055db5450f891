package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/slipwayhq/slipway/pkg/execstate"
	"github.com/slipwayhq/slipway/pkg/hostabi"
	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/rig"
	"github.com/slipwayhq/slipway/pkg/sandbox"
)

type fakeFiles struct{ marker string }

func (f fakeFiles) Exists(name string) bool             { return name == f.marker }
func (f fakeFiles) GetBin(name string) ([]byte, error)  { return nil, nil }
func (f fakeFiles) GetJSON(name string, v any) error    { return nil }
func (f fakeFiles) GetText(name string) (string, error) { return "", nil }

// doublingRunner is a fake sandbox.Runner for tests: it expects
// {"v": N} and returns {"v": 2N}, never touching the host ABI.
type doublingRunner struct{ marker string }

func (r doublingRunner) Supports(files loader.ComponentFiles) bool { return files.Exists(r.marker) }

func (r doublingRunner) Run(ctx context.Context, component *rig.Component, files loader.ComponentFiles, input json.RawMessage, host *hostabi.Host) (json.RawMessage, execstate.RunMetadata, error) {
	var in struct{ V int }
	_ = json.Unmarshal(input, &in)
	out, _ := json.Marshal(map[string]int{"v": in.V * 2})
	return out, execstate.RunMetadata{}, nil
}

func buildSession(t *testing.T, doc string) (*RigSession, *execstate.Snapshot) {
	t.Helper()
	res, err := rig.Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}

	components := make(map[primitives.Handle]*rig.Component, len(res.Rig.Rigging))
	files := make(map[primitives.Handle]loader.ComponentFiles, len(res.Rig.Rigging))
	for h := range res.Rig.Rigging {
		components[h] = &rig.Component{}
		files[h] = fakeFiles{marker: "entrypoint.fake"}
	}

	sess, err := New("test-rig", res.Rig, components, files, []sandbox.Runner{doublingRunner{marker: "entrypoint.fake"}}, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	snap, err := sess.Initialize()
	if err != nil {
		t.Fatal(err)
	}
	return sess, snap
}

func TestRun_InvokesRunnerAndAppliesOutput(t *testing.T) {
	sess, snap := buildSession(t, `{"rigging": {"a": {"component": "acme.widget.1.0.0"}}}`)

	snap, err := sess.Run(context.Background(), snap, "a")
	if err != nil {
		t.Fatal(err)
	}
	out, ok := snap.States["a"].EffectiveOutput()
	if !ok {
		t.Fatal("expected a to have output")
	}
	if string(out) != `{"v":0}` {
		t.Errorf("got %s", out)
	}
}

func TestRunAll_LinearChain(t *testing.T) {
	sess, snap := buildSession(t, `{
		"rigging": {
			"a": {"component": "acme.widget.1.0.0"},
			"b": {"component": "acme.widget.1.0.0", "input": {"v": "$$.a.v"}}
		}
	}`)

	snap, err := sess.RunAll(context.Background(), snap)
	if err != nil {
		t.Fatal(err)
	}
	outA, _ := snap.States["a"].EffectiveOutput()
	outB, _ := snap.States["b"].EffectiveOutput()
	if string(outA) != `{"v":0}` {
		t.Errorf("a: got %s", outA)
	}
	if string(outB) != `{"v":0}` {
		t.Errorf("b: got %s", outB)
	}
}

func TestRunAll_PassthroughAndSink(t *testing.T) {
	sess, snap := buildSession(t, `{
		"rigging": {
			"p": {"component": "passthrough", "input": {"x": 1}},
			"s": {"component": "sink", "input": {"got": "$$.p"}}
		}
	}`)

	snap, err := sess.RunAll(context.Background(), snap)
	if err != nil {
		t.Fatal(err)
	}
	outP, _ := snap.States["p"].EffectiveOutput()
	if string(outP) != `{"x":1}` {
		t.Errorf("passthrough: got %s", outP)
	}
	outS, _ := snap.States["s"].EffectiveOutput()
	if string(outS) != `{}` {
		t.Errorf("sink: got %s", outS)
	}
}

func TestInterleavedOrder_MatchesWeaklyConnectedRoundRobin(t *testing.T) {
	order := []primitives.Handle{"a", "b", "c", "d", "e", "f"}
	groups := [][]primitives.Handle{{"a", "b", "c"}, {"d", "e"}, {"f"}}

	got := InterleavedOrder(order, groups)
	want := []primitives.Handle{"a", "d", "f", "b", "e", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// Package session implements Session Orchestration (§4.11): wires a
// parsed rig's resolved components to the sandbox runners and the
// permission engine, and drives an execstate.Snapshot to completion.
// Adapted from pkg/runbook.Engine.Run's sequential step-and-record loop
// and pkg/fleet/executor.go's concurrency-capped fan-out, reused here
// for the optional concurrent-sibling-execution seam in §5.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/slipwayhq/slipway/pkg/execstate"
	"github.com/slipwayhq/slipway/pkg/hostabi"
	"github.com/slipwayhq/slipway/pkg/loader"
	"github.com/slipwayhq/slipway/pkg/permission"
	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/resilience"
	"github.com/slipwayhq/slipway/pkg/rig"
	"github.com/slipwayhq/slipway/pkg/sandbox"
)

// Config controls how a RigSession drives execution.
type Config struct {
	// Concurrency is the max number of sibling components (ready nodes
	// within one scheduling round, per §5) run at once. 1 (the
	// default) gives fully serial, deterministic execution; the spec
	// permits and defaults to this.
	Concurrency int
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RigSession is RigSession::new(rig, component-cache) from §4.11: a
// rig plus every handle's resolved, schema-compiled component and
// package files, ready to initialize and step.
type RigSession struct {
	RigName    string
	Rig        *rig.Rig
	Components map[primitives.Handle]*rig.Component
	Files      map[primitives.Handle]loader.ComponentFiles
	Runners    []sandbox.Runner
	Loader     *loader.Loader

	permissions map[primitives.Handle]permission.Set

	cfg    Config
	fanOut *resilience.Bulkhead

	calloutMu    sync.Mutex
	calloutCache map[string]calloutEntry
}

type calloutEntry struct {
	component *rig.Component
	files     loader.ComponentFiles
}

// New constructs a RigSession. Every handle in r.Rigging must have an
// entry in components and files.
func New(rigName string, r *rig.Rig, components map[primitives.Handle]*rig.Component, files map[primitives.Handle]loader.ComponentFiles, runners []sandbox.Runner, l *loader.Loader, cfg Config) (*RigSession, error) {
	cfg.defaults()

	permissions := make(map[primitives.Handle]permission.Set, len(r.Rigging))
	for h, cr := range r.Rigging {
		set, err := permission.SetFromWire(cr.Allow, cr.Deny)
		if err != nil {
			return nil, fmt.Errorf("session: handle %q: %w", h, err)
		}
		permissions[h] = set
	}

	return &RigSession{
		RigName:      rigName,
		Rig:          r,
		Components:   components,
		Files:        files,
		Runners:      runners,
		Loader:       l,
		permissions:  permissions,
		cfg:          cfg,
		fanOut:       resilience.NewBulkhead(rigName+".round", cfg.Concurrency),
		calloutCache: make(map[string]calloutEntry),
	}, nil
}

// Initialize builds the initial snapshot — every component's
// execution_input populated wherever its dependencies are empty
// (§4.11 "session.initialize() -> Snapshot").
func (s *RigSession) Initialize() (*execstate.Snapshot, error) {
	return execstate.NewSnapshot(s.Rig, s.Components)
}

// Step applies instr to snap (§4.11 "snapshot.step(instruction) ->
// Result<Snapshot, Error>").
func (s *RigSession) Step(snap *execstate.Snapshot, instr execstate.Instruction) (*execstate.Snapshot, error) {
	return execstate.Step(snap, instr)
}

// runnerFor picks the first runner whose backend supports the handle's
// package, per §9 "model as a capability trait with two
// implementations; the session routes by inspecting the component
// package."
func (s *RigSession) runnerFor(files loader.ComponentFiles) (sandbox.Runner, bool) {
	for _, r := range s.Runners {
		if r.Supports(files) {
			return r, true
		}
	}
	return nil, false
}

// Run takes handle's execution_input from snap (failing with StepFailed
// when it has none), invokes it (special, or via the matching sandbox
// runner), and applies the resulting SetOutput — the
// imperative convenience `session.run(handle, runners, call_chain)`
// (§4.11).
func (s *RigSession) Run(ctx context.Context, snap *execstate.Snapshot, handle primitives.Handle) (*execstate.Snapshot, error) {
	cs, ok := snap.States[handle]
	if !ok {
		return nil, fmt.Errorf("session: unknown handle %q", handle)
	}
	if cs.ExecutionInput == nil {
		return nil, fmt.Errorf("execstate: StepFailed(%q has no execution_input)", handle)
	}
	if _, hasOutput := cs.EffectiveOutput(); hasOutput {
		return snap, nil
	}

	ref := cs.Rigging.Reference
	chain := newChain(s.RigName, handle, s.permissions[handle])

	output, runMeta, err := s.invoke(ctx, handle, ref, cs.ExecutionInput.Value, chain)
	if err != nil {
		return nil, err
	}

	return execstate.Step(snap, execstate.SetOutput{Handle: handle, Value: output, RunMetadata: runMeta})
}

func (s *RigSession) invoke(ctx context.Context, handle primitives.Handle, ref primitives.Reference, input []byte, chain permission.CallChain) ([]byte, execstate.RunMetadata, error) {
	if ref.Kind == primitives.ReferenceSpecial {
		return s.runSpecial(ref, input)
	}

	component := s.Components[handle]
	files := s.Files[handle]

	runner, ok := s.runnerFor(files)
	if !ok {
		return nil, execstate.RunMetadata{}, &hostabi.ComponentError{Message: fmt.Sprintf("no sandbox runner supports component %q", handle)}
	}

	host := hostabi.New(chain, s.cfg.Logger.With("handle", handle.String(), "run_id", uuid.NewString()))
	host.RunCallout = s.calloutRunner(ctx, handle, component)
	host.LoadFile = s.calloutFileLoader(ctx, component)

	return runner.Run(ctx, component, files, input, host)
}

// newChain builds the root call-chain frame for one handle's own run,
// before any callout has pushed a child frame.
func newChain(rigName string, handle primitives.Handle, set permission.Set) permission.CallChain {
	return permission.Root(rigName, handle.String(), set)
}

func (s *RigSession) runSpecial(ref primitives.Reference, input []byte) ([]byte, execstate.RunMetadata, error) {
	switch ref.Special {
	case primitives.SpecialPass:
		return input, execstate.RunMetadata{}, nil
	case primitives.SpecialSink:
		return []byte("{}"), execstate.RunMetadata{}, nil
	default:
		return nil, execstate.RunMetadata{}, fmt.Errorf("session: unknown special component %q", ref.Special)
	}
}

package session

import (
	"context"
	"sync"

	"github.com/slipwayhq/slipway/pkg/execstate"
	"github.com/slipwayhq/slipway/pkg/primitives"
)

// InterleavedOrder computes the session-level execution order across a
// snapshot's weakly-connected groups (§8 scenario 5): each group keeps
// its own topological order (a contiguous filter of the global order —
// valid since no edge crosses groups), and a round goes over the
// groups in their discovery order, popping one ready handle from each
// non-exhausted group, until every group is drained. Group {a,b,c},
// {d,e}, {f} over order [a,b,c,d,e,f] yields [a,d,f,b,e,c].
func InterleavedOrder(order []primitives.Handle, groups [][]primitives.Handle) []primitives.Handle {
	queues := make([][]primitives.Handle, len(groups))
	membership := make(map[primitives.Handle]int, len(order))
	for gi, g := range groups {
		for _, h := range g {
			membership[h] = gi
		}
	}
	for _, h := range order {
		gi, ok := membership[h]
		if !ok {
			continue
		}
		queues[gi] = append(queues[gi], h)
	}

	result := make([]primitives.Handle, 0, len(order))
	for {
		progressed := false
		for gi := range queues {
			if len(queues[gi]) == 0 {
				continue
			}
			result = append(result, queues[gi][0])
			queues[gi] = queues[gi][1:]
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return result
}

// RunAll drives every handle in snap to completion in the interleaved
// order, skipping any handle that already has an effective output
// (e.g. from a prior SetOutputOverride). With cfg.Concurrency == 1
// (the default) this is fully sequential; a higher value runs up to
// that many handles from the same scheduling round concurrently,
// mirroring pkg/fleet/executor.go's semaphore-bounded fan-out.
func (s *RigSession) RunAll(ctx context.Context, snap *execstate.Snapshot) (*execstate.Snapshot, error) {
	for {
		order := InterleavedOrder(snap.Order, snap.Groups)
		ready := s.readyHandles(snap, order)
		if len(ready) == 0 {
			break
		}

		next, err := s.runRound(ctx, snap, ready)
		if err != nil {
			return nil, err
		}
		snap = next
	}
	return snap, nil
}

// readyHandles returns, in order, every handle that has an
// execution_input but no effective output yet.
func (s *RigSession) readyHandles(snap *execstate.Snapshot, order []primitives.Handle) []primitives.Handle {
	var ready []primitives.Handle
	for _, h := range order {
		cs := snap.States[h]
		if cs.ExecutionInput == nil {
			continue
		}
		if _, hasOutput := cs.EffectiveOutput(); hasOutput {
			continue
		}
		ready = append(ready, h)
	}
	return ready
}

// runRound executes up to cfg.Concurrency handles concurrently, then
// applies every resulting SetOutput sequentially against the same
// snapshot so step ordering stays deterministic regardless of which
// sibling finished first (§5 "observable outputs depend only on the
// declared dependencies and the sequence of instructions applied, not
// on the scheduler's interleaving"). Fan-out is bounded by a
// resilience.Bulkhead sized to cfg.Concurrency rather than a
// hand-rolled semaphore channel.
func (s *RigSession) runRound(ctx context.Context, snap *execstate.Snapshot, ready []primitives.Handle) (*execstate.Snapshot, error) {
	type outcome struct {
		handle  primitives.Handle
		output  []byte
		runMeta execstate.RunMetadata
		err     error
	}

	results := make([]outcome, len(ready))
	var wg sync.WaitGroup

	for i, h := range ready {
		wg.Add(1)
		go func(i int, h primitives.Handle) {
			defer wg.Done()
			err := s.fanOut.Execute(ctx, func() error {
				cs := snap.States[h]
				set := s.permissions[h]
				chain := newChain(s.RigName, h, set)
				output, runMeta, err := s.invoke(ctx, h, cs.Rigging.Reference, cs.ExecutionInput.Value, chain)
				results[i] = outcome{handle: h, output: output, runMeta: runMeta, err: err}
				return err
			})
			if err != nil && results[i].err == nil {
				results[i] = outcome{handle: h, err: err}
			}
		}(i, h)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		next, err := execstate.Step(snap, execstate.SetOutput{Handle: r.handle, Value: r.output, RunMetadata: r.runMeta})
		if err != nil {
			return nil, err
		}
		snap = next
	}
	return snap, nil
}

package session

import (
	"context"
	"fmt"

	"github.com/slipwayhq/slipway/pkg/hostabi"
	"github.com/slipwayhq/slipway/pkg/permission"
	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/rig"
)

// calloutRunner builds the hostabi.Runner a caller's Host uses to
// service `host.run`: resolve the alias to its component package
// (cached after first use), push a trimmed child call-chain frame, and
// dispatch to the matching sandbox runner (§4.11 "A run that triggers
// a host.run ABI call creates a child CallChain frame with the
// callout's rigging permissions intersected with the parent's").
func (s *RigSession) calloutRunner(ctx context.Context, callerHandle primitives.Handle, caller *rig.Component) hostabi.Runner {
	return func(ctx context.Context, req hostabi.RunRequest, _ permission.CallChain) (hostabi.RunResult, error) {
		refStr, ok := caller.Callouts[req.Alias]
		if !ok {
			return hostabi.RunResult{}, fmt.Errorf("session: handle %q: unknown callout alias %q", callerHandle, req.Alias)
		}

		entry, err := s.resolveCallout(ctx, refStr)
		if err != nil {
			return hostabi.RunResult{}, err
		}

		runner, ok := s.runnerFor(entry.files)
		if !ok {
			return hostabi.RunResult{}, &hostabi.ComponentError{Message: fmt.Sprintf("no sandbox runner supports callout %q", req.Alias)}
		}

		// A callout reference carries no permission literal of its
		// own; IntersectSets treats the zero Set as "inherit parent"
		// per §9.
		callerChain := permission.Root(s.RigName, callerHandle.String(), s.permissions[callerHandle])
		childChain := callerChain.Enter(s.RigName, req.Alias, permission.Set{})

		host := hostabi.New(childChain, s.cfg.Logger.With("callout", req.Alias))
		host.RunCallout = s.calloutRunner(ctx, callerHandle, entry.component)
		host.LoadFile = s.calloutFileLoader(ctx, entry.component)

		output, meta, err := runner.Run(ctx, entry.component, entry.files, req.Input, host)
		if err != nil {
			return hostabi.RunResult{}, err
		}
		return hostabi.RunResult{Output: output, RunMetadata: meta}, nil
	}
}

// calloutFileLoader builds the hostabi.FileLoader a caller's Host uses
// to service `host.load_bin`/`load_text`: resolve the alias to its
// component package through the same `callouts` map `run` uses, then
// read the requested path through that package's own ComponentFiles
// getter, which rejects absolute or parent-traversing paths (§4.1).
// Unlike calloutRunner this never invokes the callout's entrypoint —
// it only reads a file alongside it.
func (s *RigSession) calloutFileLoader(ctx context.Context, caller *rig.Component) hostabi.FileLoader {
	return func(alias, path string) ([]byte, error) {
		refStr, ok := caller.Callouts[alias]
		if !ok {
			return nil, fmt.Errorf("session: unknown callout alias %q", alias)
		}

		entry, err := s.resolveCallout(ctx, refStr)
		if err != nil {
			return nil, err
		}

		return entry.files.GetBin(path)
	}
}

// resolveCallout loads and schema-compiles a callout's component
// package the first time it's invoked, then reuses the result — the
// component cache is "constructed once and read concurrently" per §5,
// though here the cache is scoped to one session's lifetime rather
// than shared across rigs (that broader cache lives in internal/cache).
func (s *RigSession) resolveCallout(ctx context.Context, refStr string) (calloutEntry, error) {
	s.calloutMu.Lock()
	if entry, ok := s.calloutCache[refStr]; ok {
		s.calloutMu.Unlock()
		return entry, nil
	}
	s.calloutMu.Unlock()

	ref, err := primitives.ParseReference(refStr)
	if err != nil {
		return calloutEntry{}, fmt.Errorf("session: callout reference %q: %w", refStr, err)
	}

	loaded, err := s.Loader.Resolve(ctx, ref)
	if err != nil {
		return calloutEntry{}, err
	}

	defBytes, err := loaded.Files.GetBin("slipway_component.json")
	if err != nil {
		return calloutEntry{}, err
	}
	component, err := rig.ParseComponent(defBytes, loaded.Files)
	if err != nil {
		return calloutEntry{}, err
	}

	entry := calloutEntry{component: component, files: loaded.Files}

	s.calloutMu.Lock()
	s.calloutCache[refStr] = entry
	s.calloutMu.Unlock()

	return entry, nil
}

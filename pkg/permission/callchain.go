package permission

import "strings"

// Frame is one call-chain entry: a rig/component context plus its
// effective permission set, used both for evaluation and for building
// the denial trail (§4.8 "Errors raised on denial include the ...
// trail").
type Frame struct {
	Rig       string
	Component string
	Set       Set
}

// CallChain is the stack of frames in effect for the operation
// currently being evaluated, innermost first (§ Glossary "Call chain").
type CallChain struct {
	Frames []Frame
}

// Root returns the single-frame call chain for a rig's top-level
// component, before any callout has been entered.
func Root(rigName, component string, set Set) CallChain {
	return CallChain{Frames: []Frame{{Rig: rigName, Component: component, Set: set}}}
}

// Enter pushes a callout frame whose permissions are the intersection
// of the callee's own rigging permissions and the caller's effective
// permissions (§4.8 point 3, §9 "Permission trimming"). Pass a zero
// Set (both fields nil) when the callout declares no permissions of
// its own — the common case, since a callout reference string carries
// no permission literal — and the frame simply inherits the caller's
// permissions in full.
func (c CallChain) Enter(rigName, component string, calleeSet Set) CallChain {
	parentEffective := Set{}
	if len(c.Frames) > 0 {
		parentEffective = c.Frames[0].Set
	}
	trimmed := IntersectSets(calleeSet, parentEffective)
	frames := append([]Frame{{Rig: rigName, Component: component, Set: trimmed}}, c.Frames...)
	return CallChain{Frames: frames}
}

// Check evaluates op against the chain and returns a *DeniedError with
// the full trail if the chain denies it.
func (c CallChain) Check(op Operation) error {
	sets := make([]Set, len(c.Frames))
	for i, f := range c.Frames {
		sets[i] = f.Set
	}
	if Evaluate(op, sets) {
		return nil
	}
	return &DeniedError{Operation: op, Trail: c.Trail()}
}

// Trail renders the chain outward-to-innermost as "rig/component -> ...",
// matching §8 scenario 6's "rig handle trail in the error" requirement.
func (c CallChain) Trail() string {
	parts := make([]string, len(c.Frames))
	for i, f := range c.Frames {
		parts[len(c.Frames)-1-i] = f.Rig + "/" + f.Component
	}
	return strings.Join(parts, " -> ")
}

// Package permission implements the Permission Engine (§4.8): a pure
// stacked allow/deny evaluator with deny-wins-within-a-frame semantics,
// default deny, and callout intersection trimming. It replaces
// pkg/rbac's role-walk with a call-chain frame-walk; the deny-before-
// allow evaluation order and default-deny fallthrough are kept.
package permission

import (
	"fmt"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

// Class tags which capability a Permission literal governs.
type Class int

const (
	ClassAll Class = iota
	ClassHTTP
	ClassFile
	ClassFont
	ClassEnv
	ClassRegistryComponent
	ClassHTTPComponent
	ClassLocalComponent
)

// Permission is the tagged-union literal described in §3/§6.
type Permission struct {
	Class Class

	URLPattern  URLPattern  // Http, HttpComponent
	PathPattern PathPattern // File
	StrPattern  StrPattern  // Font, Env

	// RegistryComponent: any zero-valued field is a wildcard.
	Publisher     primitives.Publisher
	Name          primitives.Name
	VersionReq    string
	HasPublisher  bool
	HasName       bool
	HasVersionReq bool

	// LocalComponent: Any (true) or Exact (Path set).
	LocalAny  bool
	LocalPath string
}

// Set is a {allow, deny} pair, one per call-chain frame.
type Set struct {
	Allow []Permission
	Deny  []Permission
}

// Operation is a single host-effect request to evaluate against a
// call-chain.
type Operation struct {
	Class Class

	URL  string // Http, HttpComponent
	Path string // File

	Str string // Font, Env

	Publisher primitives.Publisher
	Name      primitives.Name
	Version   primitives.Version
}

// DeniedError reports a denial with the rig/component trail that
// produced it (§4.8 "Errors raised on denial include the ... trail").
type DeniedError struct {
	Operation Operation
	Trail     string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("permission denied for %s: trail %s", describeOperation(e.Operation), e.Trail)
}

func describeOperation(op Operation) string {
	switch op.Class {
	case ClassHTTP, ClassHTTPComponent:
		return fmt.Sprintf("http %s", op.URL)
	case ClassFile:
		return fmt.Sprintf("file %s", op.Path)
	case ClassFont:
		return fmt.Sprintf("font %s", op.Str)
	case ClassEnv:
		return fmt.Sprintf("env %s", op.Str)
	case ClassRegistryComponent:
		return fmt.Sprintf("registry component %s.%s", op.Publisher, op.Name)
	case ClassLocalComponent:
		return fmt.Sprintf("local component %s", op.Path)
	default:
		return "operation"
	}
}

// decision is the three-valued outcome of evaluating one frame.
type decision int

const (
	inconclusive decision = iota
	allowed
	denied
)

// Evaluate walks frames from the innermost (current) outward to the
// root, applying deny-wins-within-a-frame at each one, and returns the
// first non-inconclusive verdict. All-inconclusive defaults to deny
// (§4.8 points 2 and 4).
func Evaluate(op Operation, frames []Set) bool {
	for _, frame := range frames {
		switch evaluateFrame(op, frame) {
		case denied:
			return false
		case allowed:
			return true
		}
	}
	return false
}

func evaluateFrame(op Operation, frame Set) decision {
	for _, p := range frame.Deny {
		if matches(op, p) {
			return denied
		}
	}
	for _, p := range frame.Allow {
		if matches(op, p) {
			return allowed
		}
	}
	return inconclusive
}

func matches(op Operation, p Permission) bool {
	if p.Class == ClassAll {
		return true
	}
	if p.Class != op.Class {
		return false
	}
	switch p.Class {
	case ClassHTTP, ClassHTTPComponent:
		return p.URLPattern.Match(op.URL)
	case ClassFile:
		return p.PathPattern.Match(op.Path)
	case ClassFont, ClassEnv:
		return p.StrPattern.Match(op.Str)
	case ClassRegistryComponent:
		return matchRegistryComponent(op, p)
	case ClassLocalComponent:
		if p.LocalAny {
			return true
		}
		return p.LocalPath == op.Path
	default:
		return false
	}
}

func matchRegistryComponent(op Operation, p Permission) bool {
	if p.HasPublisher && p.Publisher != op.Publisher {
		return false
	}
	if p.HasName && p.Name != op.Name {
		return false
	}
	if p.HasVersionReq && !matchVersionReq(p.VersionReq, op.Version) {
		return false
	}
	return true
}

// matchVersionReq supports the exact-version and "*" wildcard forms;
// richer semver range matching is not required by any §8 scenario.
func matchVersionReq(req string, v primitives.Version) bool {
	if req == "" || req == "*" {
		return true
	}
	want, err := primitives.ParseVersion(req)
	if err != nil {
		return false
	}
	return want == v
}

// IntersectSets computes the callout-trimmed permission set: a child
// can never widen its parent's rights, so the result is the
// intersection of the two (§4.8 point 3, §9 "Permission trimming").
// Deny lists are always unioned (either party's deny still denies).
// Allow lists are intersected UNLESS the child declares none at all —
// a callout reference carries no permission literal of its own, so a
// nil child.Allow means "no declaration", which §9 says must inherit
// the parent's allow set wholesale ("Missing child permissions ⇒
// inherit parent minus denies"), not intersect down to nothing.
func IntersectSets(child, parent Set) Set {
	allow := parent.Allow
	if child.Allow != nil {
		allow = intersectPermissions(child.Allow, parent.Allow)
	}
	return Set{
		Allow: allow,
		Deny:  append(append([]Permission{}, child.Deny...), parent.Deny...),
	}
}

func intersectPermissions(a, b []Permission) []Permission {
	var out []Permission
	for _, pa := range a {
		for _, pb := range b {
			if subsumedBy(pa, pb) {
				out = append(out, pa)
				break
			}
		}
	}
	return out
}

// subsumedBy reports whether everything pa permits, pb also permits —
// a conservative structural-equality check plus the ClassAll blanket
// case, sufficient for the deny-wins/default-deny contract: permission
// trimming only needs to know "is every instance of pa covered", never
// to reason about partial pattern overlap.
func subsumedBy(pa, pb Permission) bool {
	if pb.Class == ClassAll {
		return true
	}
	return pa == pb
}

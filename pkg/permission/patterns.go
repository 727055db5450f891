package permission

import (
	"path/filepath"
	"strings"
)

// URLKind selects how a URLPattern matches a candidate URL (§6).
type URLKind int

const (
	URLAny URLKind = iota
	URLExact
	URLPrefix
)

// URLPattern matches host-requested URLs (fetch, http component refs).
type URLPattern struct {
	Kind  URLKind
	Value string
}

func (p URLPattern) Match(candidate string) bool {
	switch p.Kind {
	case URLAny:
		return true
	case URLExact:
		return candidate == p.Value
	case URLPrefix:
		return strings.HasPrefix(candidate, p.Value)
	default:
		return false
	}
}

// StrKind selects how a StrPattern matches a candidate string (§6),
// used for font names and environment variable names.
type StrKind int

const (
	StrAny StrKind = iota
	StrExact
	StrPrefix
	StrSuffix
)

// StrPattern matches opaque identifier strings.
type StrPattern struct {
	Kind  StrKind
	Value string
}

func (p StrPattern) Match(candidate string) bool {
	switch p.Kind {
	case StrAny:
		return true
	case StrExact:
		return candidate == p.Value
	case StrPrefix:
		return strings.HasPrefix(candidate, p.Value)
	case StrSuffix:
		return strings.HasSuffix(candidate, p.Value)
	default:
		return false
	}
}

// PathKind selects how a PathPattern matches a candidate filesystem
// path (§6).
type PathKind int

const (
	PathAny PathKind = iota
	PathExact
	PathWithin
)

// PathPattern matches filesystem paths requested via the file host op.
type PathPattern struct {
	Kind  PathKind
	Value string
}

func (p PathPattern) Match(candidate string) bool {
	switch p.Kind {
	case PathAny:
		return true
	case PathExact:
		return filepath.Clean(candidate) == filepath.Clean(p.Value)
	case PathWithin:
		return isWithin(p.Value, candidate)
	default:
		return false
	}
}

// isWithin reports whether candidate is ancestor-contained within root:
// root itself, or any path beneath it, after both are made absolute and
// lexically cleaned. String-prefix comparison alone would wrongly match
// "/var/appendix" against root "/var/app"; comparing path segments via
// filepath.Rel avoids that.
func isWithin(root, candidate string) bool {
	root, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	candidate, err = filepath.Abs(candidate)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..")
}

package primitives

import (
	"fmt"
	"strings"
)

// SpecialKind distinguishes the two built-in stub components.
type SpecialKind int

const (
	// SpecialPass is the identity passthrough component.
	SpecialPass SpecialKind = iota
	// SpecialSink discards its input and produces an empty object.
	SpecialSink
)

func (k SpecialKind) String() string {
	switch k {
	case SpecialPass:
		return "passthrough"
	case SpecialSink:
		return "sink"
	default:
		return "unknown"
	}
}

// ReferenceKind tags which variant of the Reference union is populated.
type ReferenceKind int

const (
	ReferenceRegistry ReferenceKind = iota
	ReferenceLocal
	ReferenceHTTP
	ReferenceSpecial
)

// Reference is the tagged union addressing a component package: a
// registry-resolved publisher/name/version triple, a local filesystem
// path, an HTTP(S) URL, or one of the two built-in special components.
//
// Reference is a value type: equality is structural, and its display
// string is the key of internal/cache's Store entries.
type Reference struct {
	Kind ReferenceKind

	Publisher Publisher
	Name      Name
	Version   Version

	Path string // ReferenceLocal: relative (file:) or absolute (file://)
	Abs  bool   // ReferenceLocal: true if parsed from file://

	URL string // ReferenceHTTP

	Special SpecialKind // ReferenceSpecial
}

// NewRegistryReference constructs a Registry-kind Reference.
func NewRegistryReference(pub Publisher, name Name, ver Version) Reference {
	return Reference{Kind: ReferenceRegistry, Publisher: pub, Name: name, Version: ver}
}

// NewLocalReference constructs a Local-kind Reference.
func NewLocalReference(path string, absolute bool) Reference {
	return Reference{Kind: ReferenceLocal, Path: path, Abs: absolute}
}

// NewHTTPReference constructs an Http-kind Reference.
func NewHTTPReference(url string) Reference {
	return Reference{Kind: ReferenceHTTP, URL: url}
}

// NewSpecialReference constructs a Special-kind Reference.
func NewSpecialReference(kind SpecialKind) Reference {
	return Reference{Kind: ReferenceSpecial, Special: kind}
}

// ParseReference parses the reference string grammar:
//
//	ref := "passthrough" | "sink"
//	     | <pub> "." <name> "." <semver>
//	     | "file:" <relpath> | "file://" <abspath>
//	     | "http(s)://" <url>
func ParseReference(s string) (Reference, error) {
	switch s {
	case "passthrough":
		return NewSpecialReference(SpecialPass), nil
	case "sink":
		return NewSpecialReference(SpecialSink), nil
	}

	switch {
	case strings.HasPrefix(s, "file://"):
		path := strings.TrimPrefix(s, "file://")
		if path == "" {
			return Reference{}, fmt.Errorf("invalid reference %q: empty file:// path", s)
		}
		return NewLocalReference(path, true), nil
	case strings.HasPrefix(s, "file:"):
		path := strings.TrimPrefix(s, "file:")
		if path == "" {
			return Reference{}, fmt.Errorf("invalid reference %q: empty file: path", s)
		}
		return NewLocalReference(path, false), nil
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return NewHTTPReference(s), nil
	}

	parts := strings.Split(s, ".")
	if len(parts) != 5 {
		return Reference{}, fmt.Errorf("invalid reference %q: expected <publisher>.<name>.<major>.<minor>.<patch>", s)
	}
	pub, err := NewPublisher(parts[0])
	if err != nil {
		return Reference{}, fmt.Errorf("invalid reference %q: %w", s, err)
	}
	name, err := NewName(parts[1])
	if err != nil {
		return Reference{}, fmt.Errorf("invalid reference %q: %w", s, err)
	}
	ver, err := ParseVersion(strings.Join(parts[2:], "."))
	if err != nil {
		return Reference{}, fmt.Errorf("invalid reference %q: %w", s, err)
	}
	return NewRegistryReference(pub, name, ver), nil
}

// String renders the reference back into the grammar it was parsed
// from; parsing the result of String always round-trips to an equal
// Reference.
func (r Reference) String() string {
	switch r.Kind {
	case ReferenceSpecial:
		return r.Special.String()
	case ReferenceLocal:
		if r.Abs {
			return "file://" + r.Path
		}
		return "file:" + r.Path
	case ReferenceHTTP:
		return r.URL
	case ReferenceRegistry:
		return fmt.Sprintf("%s.%s.%s", r.Publisher, r.Name, r.Version)
	default:
		return "<invalid reference>"
	}
}

// Equal reports structural equality between two References.
func (r Reference) Equal(other Reference) bool {
	return r == other
}

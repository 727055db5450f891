// Package loader implements the component resolver (§4.1): turning a
// primitives.Reference into a loaded component package's files, across
// special, local (directory or tar), HTTP, and registry sources.
package loader

import (
	"errors"
	"fmt"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

// ComponentFiles is the file-getter contract every loaded component
// package exposes, regardless of its backing source.
type ComponentFiles interface {
	// Exists reports whether a named file is present in the package.
	Exists(name string) bool
	// GetBin returns the raw bytes of a named file.
	GetBin(name string) ([]byte, error)
	// GetJSON unmarshals a named file as JSON into v.
	GetJSON(name string, v any) error
	// GetText returns a named file's contents decoded as UTF-8 text.
	GetText(name string) (string, error)
}

// LoadedComponent is a successfully resolved component package: its
// identity plus a handle on its files.
type LoadedComponent struct {
	Reference primitives.Reference
	Files     ComponentFiles
}

// LoadError is the stable, matchable failure surface for component
// resolution (§4.1 "Failures").
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

// LoadErrorKind enumerates the spec's named load failure kinds.
type LoadErrorKind int

const (
	FileLoadFailed LoadErrorKind = iota
	NotFound
	JsonSchemaParseFailed
	JsonTypeDefParseFailed
	JsonTypeDefConversionFailed
	ThreadJoinFailed
)

func (k LoadErrorKind) String() string {
	switch k {
	case FileLoadFailed:
		return "FileLoadFailed"
	case NotFound:
		return "NotFound"
	case JsonSchemaParseFailed:
		return "JsonSchemaParseFailed"
	case JsonTypeDefParseFailed:
		return "JsonTypeDefParseFailed"
	case JsonTypeDefConversionFailed:
		return "JsonTypeDefConversionFailed"
	case ThreadJoinFailed:
		return "ThreadJoinFailed"
	default:
		return "Unknown"
	}
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

func newLoadError(kind LoadErrorKind, path string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Err: err}
}

// ErrPathEscape is returned by a ComponentFiles getter when asked for an
// absolute or parent-traversing path.
var ErrPathEscape = errors.New("loader: path escapes component package")

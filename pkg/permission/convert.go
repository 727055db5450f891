package permission

import (
	"fmt"

	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/rig"
)

// FromWire converts a rig.Permission literal (as decoded from a rig or
// component document) into the typed Permission used for evaluation.
func FromWire(w rig.Permission) (Permission, error) {
	switch w.Permission {
	case "all":
		return Permission{Class: ClassAll}, nil
	case "http":
		return Permission{Class: ClassHTTP, URLPattern: urlPatternFromWire(w)}, nil
	case "http_component":
		return Permission{Class: ClassHTTPComponent, URLPattern: urlPatternFromWire(w)}, nil
	case "file":
		return Permission{Class: ClassFile, PathPattern: pathPatternFromWire(w)}, nil
	case "font":
		return Permission{Class: ClassFont, StrPattern: strPatternFromWire(w)}, nil
	case "env":
		return Permission{Class: ClassEnv, StrPattern: strPatternFromWire(w)}, nil
	case "local_component":
		if w.Any {
			return Permission{Class: ClassLocalComponent, LocalAny: true}, nil
		}
		return Permission{Class: ClassLocalComponent, LocalPath: w.Exact}, nil
	case "registry_component":
		p := Permission{Class: ClassRegistryComponent}
		if w.Publisher != "" {
			pub, err := primitives.NewPublisher(w.Publisher)
			if err != nil {
				return Permission{}, err
			}
			p.Publisher = pub
			p.HasPublisher = true
		}
		if w.Name != "" {
			name, err := primitives.NewName(w.Name)
			if err != nil {
				return Permission{}, err
			}
			p.Name = name
			p.HasName = true
		}
		if w.Version != "" {
			p.VersionReq = w.Version
			p.HasVersionReq = true
		}
		return p, nil
	default:
		return Permission{}, fmt.Errorf("permission: unknown permission kind %q", w.Permission)
	}
}

func urlPatternFromWire(w rig.Permission) URLPattern {
	switch {
	case w.Exact != "":
		return URLPattern{Kind: URLExact, Value: w.Exact}
	case w.Prefix != "":
		return URLPattern{Kind: URLPrefix, Value: w.Prefix}
	default:
		return URLPattern{Kind: URLAny}
	}
}

func strPatternFromWire(w rig.Permission) StrPattern {
	switch {
	case w.Exact != "":
		return StrPattern{Kind: StrExact, Value: w.Exact}
	case w.Prefix != "":
		return StrPattern{Kind: StrPrefix, Value: w.Prefix}
	case w.Suffix != "":
		return StrPattern{Kind: StrSuffix, Value: w.Suffix}
	default:
		return StrPattern{Kind: StrAny}
	}
}

func pathPatternFromWire(w rig.Permission) PathPattern {
	switch {
	case w.Exact != "":
		return PathPattern{Kind: PathExact, Value: w.Exact}
	case w.Within != "":
		return PathPattern{Kind: PathWithin, Value: w.Within}
	default:
		return PathPattern{Kind: PathAny}
	}
}

// SetFromWire converts a ComponentRigging's Allow/Deny slices into a Set.
func SetFromWire(allow, deny []rig.Permission) (Set, error) {
	set := Set{
		Allow: make([]Permission, 0, len(allow)),
		Deny:  make([]Permission, 0, len(deny)),
	}
	for _, w := range allow {
		p, err := FromWire(w)
		if err != nil {
			return Set{}, err
		}
		set.Allow = append(set.Allow, p)
	}
	for _, w := range deny {
		p, err := FromWire(w)
		if err != nil {
			return Set{}, err
		}
		set.Deny = append(set.Deny, p)
	}
	return set, nil
}

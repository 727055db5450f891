package loader

import (
	"path/filepath"
	"strings"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

// resolvedURLKind classifies a string produced by substituting a
// registry URL template, per §4.1 point 4 and SPEC_FULL supplement 4.
type resolvedURLKind int

const (
	resolvedRelativePath resolvedURLKind = iota
	resolvedAbsolutePath
	resolvedHTTP
	resolvedOther
)

// classifyResolvedURL dispatches a substituted registry URL to the
// source it should be treated as, mirroring the original resolver's
// explicit four-way classification rather than a collapsed
// try-local-else-http heuristic.
func classifyResolvedURL(s string) resolvedURLKind {
	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return resolvedHTTP
	case strings.Contains(s, "://"):
		return resolvedOther
	case filepath.IsAbs(s):
		return resolvedAbsolutePath
	default:
		return resolvedRelativePath
	}
}

// substituteRegistryTemplate fills {publisher}/{name}/{version}
// placeholders in a registry URL template.
func substituteRegistryTemplate(template string, pub primitives.Publisher, name primitives.Name, ver primitives.Version) string {
	r := strings.NewReplacer(
		"{publisher}", pub.String(),
		"{name}", name.String(),
		"{version}", ver.String(),
	)
	return r.Replace(template)
}

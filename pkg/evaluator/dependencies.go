package evaluator

import (
	"encoding/json"
	"regexp"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

var riggingRef = regexp.MustCompile(`^rigging\.(\w+)\.`)

// ExtractDependencies walks raw for every fingerprint and returns the
// set of handles it references — `$$` fingerprints always reference
// `rigging.<handle>.output` directly; a `$` fingerprint only
// contributes a dependency when its path explicitly crosses
// `rigging.<handle>.`, since otherwise it resolves against constants
// with no component ordering implication.
//
// Called whenever a component's input template (raw or override)
// changes, per §4.5's recomputation algorithm step 1.
func ExtractDependencies(raw json.RawMessage) map[primitives.Handle]struct{} {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}

	var matches []match
	collectMatches(tree, "", &matches)

	deps := make(map[primitives.Handle]struct{})
	for _, m := range matches {
		if h, ok := handleOf(m.fp.Projection); ok {
			deps[h] = struct{}{}
		}
	}
	return deps
}

func handleOf(gjsonPath string) (primitives.Handle, bool) {
	m := riggingRef.FindStringSubmatch(gjsonPath)
	if m == nil {
		return "", false
	}
	return primitives.Handle(m[1]), true
}

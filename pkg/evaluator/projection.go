package evaluator

import (
	"encoding/json"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

// HandleProjection is the portion of the serialized state projection
// exposed for a single handle: its effective input and/or output,
// whichever are currently available.
type HandleProjection struct {
	Input  json.RawMessage
	Output json.RawMessage
}

// BuildProjection assembles the serialized state projection (§4.5 step
// 2): constants spread at the root, plus `description` and
// `rigging.<handle>.{input,output}` for every handle whose effective
// value is currently available.
func BuildProjection(description string, constants json.RawMessage, handles map[primitives.Handle]HandleProjection) (json.RawMessage, error) {
	root := map[string]any{}

	if len(constants) > 0 {
		var constMap map[string]any
		if err := json.Unmarshal(constants, &constMap); err == nil {
			for k, v := range constMap {
				root[k] = v
			}
		}
	}

	if description != "" {
		root["description"] = description
	}

	rigging := map[string]any{}
	for h, hp := range handles {
		entry := map[string]any{}
		if len(hp.Input) > 0 {
			entry["input"] = json.RawMessage(hp.Input)
		}
		if len(hp.Output) > 0 {
			entry["output"] = json.RawMessage(hp.Output)
		}
		if len(entry) > 0 {
			rigging[h.String()] = entry
		}
	}
	root["rigging"] = rigging

	return json.Marshal(root)
}

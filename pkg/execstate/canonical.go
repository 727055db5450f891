package execstate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// JsonMetadata is a content hash plus length of a value's canonical
// serialization, per §3 and Open Question (c).
type JsonMetadata struct {
	Hash          string
	SerializedLen int
}

// canonicalize recursively sorts object keys and re-marshals with no
// insignificant whitespace, fixing the total order Open Question (c)
// requires so every hash site agrees.
func canonicalize(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("execstate: canonicalize: %w", err)
	}
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalCanonical(x[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil

	case []any:
		out := []byte{'['}
		for i, e := range x {
			if i > 0 {
				out = append(out, ',')
			}
			eb, err := marshalCanonical(e)
			if err != nil {
				return nil, err
			}
			out = append(out, eb...)
		}
		out = append(out, ']')
		return out, nil

	default:
		return json.Marshal(x)
	}
}

// ComputeMetadata hashes raw's canonical serialization.
func ComputeMetadata(raw json.RawMessage) (JsonMetadata, error) {
	canon, err := canonicalize(raw)
	if err != nil {
		return JsonMetadata{}, err
	}
	sum := sha256.Sum256(canon)
	return JsonMetadata{
		Hash:          hex.EncodeToString(sum[:]),
		SerializedLen: len(canon),
	}, nil
}

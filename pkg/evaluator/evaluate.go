package evaluator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ResolveJsonPathFailedError is the stable failure for an unresolved
// required reference (§7).
type ResolveJsonPathFailedError struct {
	Message   string
	FieldPath string
}

func (e *ResolveJsonPathFailedError) Error() string {
	return fmt.Sprintf("ResolveJsonPathFailed: %s (field %s)", e.Message, e.FieldPath)
}

type match struct {
	path string // sjson-style dotted path into the raw document
	fp   Fingerprint
}

// Evaluate walks raw depth-first, resolves every fingerprint it finds
// against projection, and splices the results back — in reverse
// document order, so array-element removal by index never invalidates
// a not-yet-processed match (§4.6).
//
// Evaluate never mutates raw; it returns a new value, serialized without
// insignificant whitespace.
func Evaluate(raw json.RawMessage, projection json.RawMessage) (json.RawMessage, error) {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("evaluator: invalid input template: %w", err)
	}

	var matches []match
	collectMatches(tree, "", &matches)

	result := []byte(raw)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		next, err := applyMatch(result, projection, m)
		if err != nil {
			return nil, err
		}
		result = next
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, result); err != nil {
		return nil, fmt.Errorf("evaluator: invalid evaluated input: %w", err)
	}
	return json.RawMessage(compact.Bytes()), nil
}

func collectMatches(node any, path string, out *[]match) {
	switch v := node.(type) {
	case string:
		if fp, ok := ParseFingerprint(v); ok {
			*out = append(*out, match{path: path, fp: fp})
		}
	case map[string]any:
		for key, child := range v {
			collectMatches(child, joinPath(path, key), out)
		}
	case []any:
		for i, child := range v {
			collectMatches(child, joinPath(path, strconv.Itoa(i)), out)
		}
	default:
		// numbers, bools, null: never fingerprints
	}
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "." + seg
}

// applyMatch resolves a single fingerprint against projection and
// splices the outcome into doc at m.path, per the path-type semantics
// table in §4.6.
func applyMatch(doc []byte, projection []byte, m match) ([]byte, error) {
	res := gjson.GetBytes(projection, m.fp.Projection)
	multi := strings.Contains(m.fp.Projection, "#")

	switch m.fp.Type {
	case Required:
		value, ok := firstValue(res, multi)
		if !ok {
			return nil, &ResolveJsonPathFailedError{
				Message:   fmt.Sprintf("unresolved required reference %q", m.fp.Projection),
				FieldPath: m.path,
			}
		}
		return sjson.SetRawBytes(doc, m.path, []byte(value))

	case Optional:
		value, ok := firstValue(res, multi)
		if !ok {
			return sjson.DeleteBytes(doc, m.path)
		}
		return sjson.SetRawBytes(doc, m.path, []byte(value))

	case Array:
		return sjson.SetRawBytes(doc, m.path, []byte(arrayValue(res, multi)))

	default:
		return nil, fmt.Errorf("evaluator: unknown path type for %q", m.fp.Projection)
	}
}

// firstValue extracts the "one match" / "first of many matches" value a
// required or optional fingerprint resolves to. multi reports whether the
// path holds a `#` wildcard, in which case res is the array of matches;
// otherwise res is the one matched value, even when that value is an array.
func firstValue(res gjson.Result, multi bool) (string, bool) {
	if !res.Exists() {
		return "", false
	}
	if multi && res.IsArray() {
		arr := res.Array()
		if len(arr) == 0 {
			return "", false
		}
		return arr[0].Raw, true
	}
	return res.Raw, true
}

// arrayValue renders the "no match -> [] / one match -> [v] / many
// matches -> [v1,…]" semantics for an array-type fingerprint.
func arrayValue(res gjson.Result, multi bool) string {
	if !res.Exists() {
		return "[]"
	}
	if multi && res.IsArray() {
		return res.Raw
	}
	return "[" + res.Raw + "]"
}

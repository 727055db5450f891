package schema

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

type compiledJSONSchema struct {
	resolved *jsonschema.Resolved
}

// compileJSONSchema compiles a JSON Schema document, injecting a
// synthetic $id when absent and resolving in-component $refs through
// files. External http(s) refs are rejected outright (§4.2).
func compileJSONSchema(raw json.RawMessage, schemaName string, files FilesGetter) (*compiledJSONSchema, error) {
	withID, err := ensureID(raw, schemaName)
	if err != nil {
		return nil, fmt.Errorf("schema: JsonSchemaParseFailed: %w", err)
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(withID, &s); err != nil {
		return nil, fmt.Errorf("schema: JsonSchemaParseFailed: %w", err)
	}

	resolved, err := s.Resolve(&jsonschema.ResolveOptions{
		Loader: componentRefLoader(files),
	})
	if err != nil {
		return nil, fmt.Errorf("schema: JsonSchemaParseFailed: %w", err)
	}

	return &compiledJSONSchema{resolved: resolved}, nil
}

// ensureID injects a synthetic `$id` of `file:///<schemaName>` into raw
// if it does not already declare one, so relative $refs without a root
// $id still resolve (§4.2).
func ensureID(raw json.RawMessage, schemaName string) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if _, hasID := doc["$id"]; !hasID {
		doc["$id"] = "file:///" + schemaName
		patched, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return patched, nil
	}
	return raw, nil
}

// componentRefLoader resolves schema $ref URIs against the component's
// own files, forbidding any external http(s) reference.
func componentRefLoader(files FilesGetter) func(uri *url.URL) (*jsonschema.Schema, error) {
	return func(uri *url.URL) (*jsonschema.Schema, error) {
		switch uri.Scheme {
		case "http", "https":
			return nil, fmt.Errorf("schema: external schema ref forbidden: %s", uri)

		case "file":
			path := strings.TrimPrefix(uri.Path, "/")
			return loadSiblingSchema(files, path)

		case "json-schema":
			path := strings.TrimPrefix(uri.Opaque, "/")
			if path == "" {
				path = strings.TrimPrefix(uri.Path, "/")
			}
			if path == "" {
				return nil, fmt.Errorf("schema: relative json-schema ref without a root $id: %s", uri)
			}
			return loadSiblingSchema(files, path)

		default:
			return nil, fmt.Errorf("schema: unsupported $ref scheme %q in %s", uri.Scheme, uri)
		}
	}
}

func loadSiblingSchema(files FilesGetter, path string) (*jsonschema.Schema, error) {
	if !files.Exists(path) {
		return nil, fmt.Errorf("schema: referenced file %q not found in component package", path)
	}
	b, err := files.GetBin(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading referenced file %q: %w", path, err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("schema: parsing referenced file %q: %w", path, err)
	}
	return &s, nil
}

func validateJSONSchema(s *compiledJSONSchema, instance any) ([]ValidationFailure, error) {
	if err := s.resolved.Validate(instance); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return flattenValidationError(verr), nil
		}
		return nil, fmt.Errorf("schema: validation error: %w", err)
	}
	return nil, nil
}

// flattenValidationError walks a (possibly nested) jsonschema
// ValidationError tree into the flat failure list §4.7 requires.
func flattenValidationError(verr *jsonschema.ValidationError) []ValidationFailure {
	var out []ValidationFailure
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if e == nil {
			return
		}
		if len(e.Causes) == 0 {
			out = append(out, ValidationFailure{
				InstancePath: joinJSONPointer(e.InstanceLocation),
				SchemaPath:   joinJSONPointer(e.KeywordLocation),
				Message:      e.Error(),
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return out
}

func joinJSONPointer(segments []string) string {
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// Package schema implements the Schema Parser (§4.2): deciding between
// JSON Type Definition and JSON Schema by the presence of a `$schema`
// meta-URL, compiling either form, and resolving in-component `$ref`s
// through the loader's ComponentFiles getter while rejecting external
// HTTP(S) references.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags which schema dialect a Schema compiled from.
type Kind int

const (
	KindJTD Kind = iota
	KindJSONSchema
)

func (k Kind) String() string {
	if k == KindJSONSchema {
		return "JSONSchema"
	}
	return "JTD"
}

// Schema is the compiled form of either dialect, plus (for JSON Schema)
// the original document so it can be re-serialized losslessly.
type Schema struct {
	Kind Kind

	jtd        *jtdSchema
	jsonSchema *compiledJSONSchema

	// Raw is the original, uncompiled document.
	Raw json.RawMessage
}

// FilesGetter is the subset of loader.ComponentFiles the schema
// compiler needs to resolve sibling-file $refs, kept as a narrow
// interface here to avoid an import cycle with pkg/loader.
type FilesGetter interface {
	Exists(name string) bool
	GetBin(name string) ([]byte, error)
}

// jsonSchemaMetaMarker is present in any $schema value that identifies
// the document as a JSON Schema rather than a JTD document.
const jsonSchemaMetaMarker = "://json-schema.org/"

// Compile decides the dialect from the top-level `$schema` field and
// compiles raw accordingly.
func Compile(raw json.RawMessage, schemaName string, files FilesGetter) (*Schema, error) {
	var probe struct {
		Schema string `json:"$schema"`
	}
	// A parse failure here is tolerated; absence of $schema just means JTD.
	_ = json.Unmarshal(raw, &probe)

	if strings.Contains(probe.Schema, jsonSchemaMetaMarker) {
		compiled, err := compileJSONSchema(raw, schemaName, files)
		if err != nil {
			return nil, err
		}
		return &Schema{Kind: KindJSONSchema, jsonSchema: compiled, Raw: raw}, nil
	}

	compiled, err := compileJTD(raw)
	if err != nil {
		return nil, err
	}
	return &Schema{Kind: KindJTD, jtd: compiled, Raw: raw}, nil
}

// ValidationFailure records one schema-validation failure with both the
// failing location in the validated instance and the corresponding
// location in the schema, per §4.7.
type ValidationFailure struct {
	InstancePath string
	SchemaPath   string
	Message      string
}

// Validate checks instance against the compiled schema and returns the
// list of failures (empty when valid).
func (s *Schema) Validate(instance any) ([]ValidationFailure, error) {
	switch s.Kind {
	case KindJTD:
		return validateJTD(s.jtd, instance)
	case KindJSONSchema:
		return validateJSONSchema(s.jsonSchema, instance)
	default:
		return nil, fmt.Errorf("schema: unknown kind %v", s.Kind)
	}
}

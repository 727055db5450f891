package schema

import (
	"encoding/json"
	"fmt"

	jtd "github.com/jsontypedef/json-typedef-go"
)

type jtdSchema struct {
	schema jtd.Schema
}

func compileJTD(raw json.RawMessage) (*jtdSchema, error) {
	var s jtd.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("schema: JsonTypeDefParseFailed: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schema: JsonTypeDefConversionFailed: %w", err)
	}
	return &jtdSchema{schema: s}, nil
}

func validateJTD(s *jtdSchema, instance any) ([]ValidationFailure, error) {
	errs, err := jtd.Validate(s.schema, instance)
	if err != nil {
		return nil, fmt.Errorf("schema: jtd validation error: %w", err)
	}

	failures := make([]ValidationFailure, 0, len(errs))
	for _, e := range errs {
		failures = append(failures, ValidationFailure{
			InstancePath: joinPath(e.InstancePath),
			SchemaPath:   joinPath(e.SchemaPath),
		})
	}
	return failures, nil
}

func joinPath(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	out := ""
	for _, seg := range segments {
		out += "/" + seg
	}
	return out
}

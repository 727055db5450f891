package loader

import (
	"encoding/json"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

// passthroughSchema accepts any JSON value and echoes it unchanged.
const passthroughSchema = `{"nullable":true}`

// sinkInputSchema accepts any JSON value; sinkOutputSchema accepts only
// an empty object, matching the original's SpecialComponent semantics.
const sinkInputSchema = `{"nullable":true}`
const sinkOutputSchema = `{"properties":{}}`

// specialFiles synthesizes the in-memory definition and schema files for
// the two built-in components (§4.1 point 1, SPEC_FULL supplement 5).
type specialFiles struct {
	files map[string][]byte
}

func newSpecialFiles(kind primitives.SpecialKind) *specialFiles {
	var inputSchema, outputSchema string
	switch kind {
	case primitives.SpecialPass:
		inputSchema, outputSchema = passthroughSchema, passthroughSchema
	case primitives.SpecialSink:
		inputSchema, outputSchema = sinkInputSchema, sinkOutputSchema
	}

	def := map[string]any{
		"publisher": "slipway",
		"name":      kind.String(),
		"version":   "1.0.0",
		"input":     json.RawMessage(inputSchema),
		"output":    json.RawMessage(outputSchema),
	}
	defBytes, _ := json.Marshal(def)

	return &specialFiles{
		files: map[string][]byte{
			"slipway_component.json": defBytes,
			"input_schema.json":      []byte(inputSchema),
			"output_schema.json":     []byte(outputSchema),
		},
	}
}

func (s *specialFiles) Exists(name string) bool {
	_, ok := s.files[name]
	return ok
}

func (s *specialFiles) GetBin(name string) ([]byte, error) {
	b, ok := s.files[name]
	if !ok {
		return nil, newLoadError(NotFound, name, nil)
	}
	return b, nil
}

func (s *specialFiles) GetText(name string) (string, error) {
	b, err := s.GetBin(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *specialFiles) GetJSON(name string, v any) error {
	b, err := s.GetBin(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return newLoadError(FileLoadFailed, name, err)
	}
	return nil
}

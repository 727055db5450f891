package schema

import "testing"

type noFiles struct{}

func (noFiles) Exists(name string) bool          { return false }
func (noFiles) GetBin(name string) ([]byte, error) { return nil, nil }

func TestCompile_JTD(t *testing.T) {
	raw := []byte(`{"properties":{"a":{"type":"string"}}}`)
	s, err := Compile(raw, "input_schema.json", noFiles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Kind != KindJTD {
		t.Errorf("got kind %v, want JTD", s.Kind)
	}

	failures, err := s.Validate(map[string]any{"a": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("expected no failures, got %+v", failures)
	}

	failures, err = s.Validate(map[string]any{"a": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) == 0 {
		t.Errorf("expected a type-mismatch failure")
	}
}

func TestCompile_JSONSchema_DetectsDialect(t *testing.T) {
	raw := []byte(`{"$schema":"https://json-schema.org/draft/2020-12/schema","type":"object"}`)
	s, err := Compile(raw, "input_schema.json", noFiles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Kind != KindJSONSchema {
		t.Errorf("got kind %v, want JSONSchema", s.Kind)
	}
}

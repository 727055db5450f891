package rig

import "testing"

func TestParse_LinearChain(t *testing.T) {
	doc := []byte(`{
		"rigging": {
			"a": {"component": "passthrough"},
			"b": {"component": "passthrough", "input": {"v": "$$.a"}},
			"c": {"component": "passthrough", "input": {"v": "$$.b"}}
		}
	}`)

	res, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rig.Rigging) != 3 {
		t.Fatalf("got %d handles", len(res.Rig.Rigging))
	}
	b, ok := res.Rig.Rigging["b"]
	if !ok {
		t.Fatalf("expected handle b")
	}
	if b.Reference.String() != "passthrough" {
		t.Errorf("got reference %q", b.Reference.String())
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	doc := []byte(`{"rigging": {"a": {"component": "passthrough"}}, "unexpected_field": 1}`)
	if _, err := Parse(doc); err == nil {
		t.Errorf("expected error for unknown top-level field")
	}
}

func TestParse_RejectsInvalidHandle(t *testing.T) {
	doc := []byte(`{"rigging": {"bad handle": {"component": "passthrough"}}}`)
	if _, err := Parse(doc); err == nil {
		t.Errorf("expected error for invalid handle")
	}
}

func TestParse_RejectsInvalidComponentReference(t *testing.T) {
	doc := []byte(`{"rigging": {"a": {"component": "not a valid ref!!"}}}`)
	if _, err := Parse(doc); err == nil {
		t.Errorf("expected error for invalid component reference")
	}
}

func TestParse_CalloutsParsed(t *testing.T) {
	doc := []byte(`{
		"rigging": {
			"a": {
				"component": "acme.orchestrator.1.0.0",
				"callouts": {"sub": "acme.worker.2.0.0"}
			}
		}
	}`)
	res, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := res.Rig.Rigging["a"]
	ref, ok := a.CalloutRefs["sub"]
	if !ok {
		t.Fatalf("expected callout alias sub")
	}
	if ref.String() != "acme.worker.2.0.0" {
		t.Errorf("got %q", ref.String())
	}
}

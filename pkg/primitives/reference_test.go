package primitives

import "testing"

func TestParseReference_Special(t *testing.T) {
	r, err := ParseReference("passthrough")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != ReferenceSpecial || r.Special != SpecialPass {
		t.Errorf("got %+v", r)
	}
	if r.String() != "passthrough" {
		t.Errorf("got %q", r.String())
	}

	r, err = ParseReference("sink")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != ReferenceSpecial || r.Special != SpecialSink {
		t.Errorf("got %+v", r)
	}
}

func TestParseReference_Registry(t *testing.T) {
	r, err := ParseReference("acme.weather.1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != ReferenceRegistry {
		t.Fatalf("expected registry kind, got %v", r.Kind)
	}
	if r.Publisher != "acme" || r.Name != "weather" {
		t.Errorf("got %+v", r)
	}
	if r.Version != (Version{1, 2, 3}) {
		t.Errorf("got version %+v", r.Version)
	}
	if r.String() != "acme.weather.1.2.3" {
		t.Errorf("round-trip failed: got %q", r.String())
	}
}

func TestParseReference_LocalFile(t *testing.T) {
	rel, err := ParseReference("file:components/weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel.Kind != ReferenceLocal || rel.Abs {
		t.Errorf("got %+v", rel)
	}
	if rel.String() != "file:components/weather" {
		t.Errorf("round-trip failed: got %q", rel.String())
	}

	abs, err := ParseReference("file:///opt/components/weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if abs.Kind != ReferenceLocal || !abs.Abs {
		t.Errorf("got %+v", abs)
	}
	if abs.String() != "file:///opt/components/weather" {
		t.Errorf("round-trip failed: got %q", abs.String())
	}
}

func TestParseReference_HTTP(t *testing.T) {
	for _, s := range []string{"http://example.com/c.tar", "https://example.com/c.tar"} {
		r, err := ParseReference(s)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", s, err)
		}
		if r.Kind != ReferenceHTTP || r.URL != s {
			t.Errorf("got %+v", r)
		}
		if r.String() != s {
			t.Errorf("round-trip failed: got %q, want %q", r.String(), s)
		}
	}
}

func TestParseReference_Invalid(t *testing.T) {
	for _, s := range []string{"", "acme.weather", "bad publisher.name.1.0.0", "acme.weather.v1.0.0"} {
		if _, err := ParseReference(s); err == nil {
			t.Errorf("expected error for reference %q", s)
		}
	}
}

func TestReference_Equal(t *testing.T) {
	a, _ := ParseReference("acme.weather.1.0.0")
	b, _ := ParseReference("acme.weather.1.0.0")
	c, _ := ParseReference("acme.weather.1.0.1")
	if !a.Equal(b) {
		t.Errorf("expected a == b")
	}
	if a.Equal(c) {
		t.Errorf("expected a != c")
	}
}

package primitives

import "testing"

func TestParseVersion_RoundTrip(t *testing.T) {
	v, err := ParseVersion("1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != (Version{Major: 1, Minor: 2, Patch: 3}) {
		t.Errorf("got %+v", v)
	}
	if v.String() != "1.2.3" {
		t.Errorf("got %q, want 1.2.3", v.String())
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, s := range []string{"1.2", "1.2.3.4", "v1.2.3", "1.2.x"} {
		if _, err := ParseVersion(s); err == nil {
			t.Errorf("expected error for version %q", s)
		}
	}
}

func TestVersion_Compare(t *testing.T) {
	a, _ := ParseVersion("1.2.3")
	b, _ := ParseVersion("1.3.0")
	if a.Compare(b) != -1 {
		t.Errorf("expected a < b")
	}
	if b.Compare(a) != 1 {
		t.Errorf("expected b > a")
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected a == a")
	}
}

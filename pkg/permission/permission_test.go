package permission

import (
	"testing"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

func mustPublisher(t *testing.T, s string) primitives.Publisher {
	t.Helper()
	p, err := primitives.NewPublisher(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func mustName(t *testing.T, s string) primitives.Name {
	t.Helper()
	n, err := primitives.NewName(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestEvaluate_DenyBeatsAllowInSameFrame(t *testing.T) {
	frame := Set{
		Allow: []Permission{{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLPrefix, Value: "https://x.com"}}},
		Deny:  []Permission{{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://x.com/bad"}}},
	}

	good := Operation{Class: ClassHTTP, URL: "https://x.com/good"}
	if !Evaluate(good, []Set{frame}) {
		t.Error("expected https://x.com/good to be allowed")
	}

	bad := Operation{Class: ClassHTTP, URL: "https://x.com/bad"}
	if Evaluate(bad, []Set{frame}) {
		t.Error("expected https://x.com/bad to be denied")
	}
}

func TestCallChain_DenialIncludesTrail(t *testing.T) {
	frame := Set{Deny: []Permission{{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://x.com/bad"}}}}
	chain := Root("my-rig", "fetcher", frame)

	err := chain.Check(Operation{Class: ClassHTTP, URL: "https://x.com/bad"})
	if err == nil {
		t.Fatal("expected denial")
	}
	de, ok := err.(*DeniedError)
	if !ok {
		t.Fatalf("expected *DeniedError, got %T", err)
	}
	if de.Trail != "my-rig/fetcher" {
		t.Errorf("got trail %q", de.Trail)
	}
}

func TestEvaluate_AllInconclusiveDefaultsToDeny(t *testing.T) {
	frame := Set{}
	if Evaluate(Operation{Class: ClassFile, Path: "/tmp/x"}, []Set{frame}) {
		t.Error("expected default deny on empty frame")
	}
}

func TestEvaluate_PermissionAllIsBlanketGrant(t *testing.T) {
	frame := Set{Allow: []Permission{{Class: ClassAll}}}
	if !Evaluate(Operation{Class: ClassEnv, Str: "HOME"}, []Set{frame}) {
		t.Error("expected All to grant everything")
	}
}

func TestEvaluate_PermissionAllInDenyBlocksEverything(t *testing.T) {
	frame := Set{
		Allow: []Permission{{Class: ClassEnv, StrPattern: StrPattern{Kind: StrAny}}},
		Deny:  []Permission{{Class: ClassAll}},
	}
	if Evaluate(Operation{Class: ClassEnv, Str: "HOME"}, []Set{frame}) {
		t.Error("expected All in deny to block everything")
	}
}

func TestEvaluate_OuterFrameUsedWhenInnerInconclusive(t *testing.T) {
	inner := Set{}
	outer := Set{Allow: []Permission{{Class: ClassFont, StrPattern: StrPattern{Kind: StrExact, Value: "Arial"}}}}
	if !Evaluate(Operation{Class: ClassFont, Str: "Arial"}, []Set{inner, outer}) {
		t.Error("expected outer frame's allow to apply when inner is inconclusive")
	}
}

func TestPathPattern_Within(t *testing.T) {
	p := PathPattern{Kind: PathWithin, Value: "/var/app"}
	if !p.Match("/var/app/data/file.json") {
		t.Error("expected /var/app/data/file.json to be within /var/app")
	}
	if !p.Match("/var/app") {
		t.Error("expected root itself to be within")
	}
	if p.Match("/var/appendix/file.json") {
		t.Error("expected /var/appendix to NOT be within /var/app (lexical prefix trap)")
	}
	if p.Match("/var/other/file.json") {
		t.Error("expected unrelated path to not match")
	}
}

func TestIntersectSets_ChildCannotWidenParent(t *testing.T) {
	parent := Set{Allow: []Permission{{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://a.com"}}}}
	child := Set{Allow: []Permission{
		{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://a.com"}},
		{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://b.com"}},
	}}

	trimmed := IntersectSets(child, parent)
	if !Evaluate(Operation{Class: ClassHTTP, URL: "https://a.com"}, []Set{trimmed}) {
		t.Error("expected a.com to remain allowed")
	}
	if Evaluate(Operation{Class: ClassHTTP, URL: "https://b.com"}, []Set{trimmed}) {
		t.Error("expected b.com to be trimmed away: child cannot widen parent's rights")
	}
}

func TestIntersectSets_MissingChildPermissionsInheritsParent(t *testing.T) {
	parent := Set{
		Allow: []Permission{{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://a.com"}}},
		Deny:  []Permission{{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://bad.com"}}},
	}
	child := Set{} // no declaration of its own

	trimmed := IntersectSets(child, parent)
	if !Evaluate(Operation{Class: ClassHTTP, URL: "https://a.com"}, []Set{trimmed}) {
		t.Error("expected a callout with no declared permissions to inherit the parent's allow set")
	}
	if Evaluate(Operation{Class: ClassHTTP, URL: "https://bad.com"}, []Set{trimmed}) {
		t.Error("expected the parent's deny to still apply")
	}
}

func TestIntersectSets_ParentDenyStillApplies(t *testing.T) {
	parent := Set{Deny: []Permission{{Class: ClassFile, PathPattern: PathPattern{Kind: PathExact, Value: "/etc/shadow"}}}}
	child := Set{Allow: []Permission{{Class: ClassAll}}}

	trimmed := IntersectSets(child, parent)
	if Evaluate(Operation{Class: ClassFile, Path: "/etc/shadow"}, []Set{trimmed}) {
		t.Error("expected parent's deny to survive intersection")
	}
}

func TestCallChain_EnterTrimsPermissions(t *testing.T) {
	parent := Set{Allow: []Permission{{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://a.com"}}}}
	chain := Root("outer-rig", "caller", parent)

	callee := Set{Allow: []Permission{
		{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://a.com"}},
		{Class: ClassHTTP, URLPattern: URLPattern{Kind: URLExact, Value: "https://evil.com"}},
	}}
	child := chain.Enter("outer-rig", "callout-component", callee)

	if err := child.Check(Operation{Class: ClassHTTP, URL: "https://a.com"}); err != nil {
		t.Errorf("expected a.com to be allowed in callout, got %v", err)
	}
	if err := child.Check(Operation{Class: ClassHTTP, URL: "https://evil.com"}); err == nil {
		t.Error("expected evil.com to be denied: callout cannot widen caller's rights")
	}
}

func TestRegistryComponentPermission_WildcardFields(t *testing.T) {
	p := Permission{Class: ClassRegistryComponent, HasPublisher: true, Publisher: mustPublisher(t, "acme")}
	set := Set{Allow: []Permission{p}}

	op := Operation{Class: ClassRegistryComponent, Publisher: mustPublisher(t, "acme"), Name: mustName(t, "anything")}
	if !Evaluate(op, []Set{set}) {
		t.Error("expected publisher-only permission to wildcard the name field")
	}

	other := Operation{Class: ClassRegistryComponent, Publisher: mustPublisher(t, "other"), Name: mustName(t, "anything")}
	if Evaluate(other, []Set{set}) {
		t.Error("expected different publisher to be denied")
	}
}

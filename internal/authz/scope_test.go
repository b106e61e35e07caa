package authz

import "testing"

func TestParseScope(t *testing.T) {
	if s, err := ParseScope("own"); err != nil || s != ScopeOwn {
		t.Fatalf("ParseScope(own)=%v,%v", s, err)
	}
	if s, err := ParseScope("full"); err != nil || s != ScopeFull {
		t.Fatalf("ParseScope(full)=%v,%v", s, err)
	}
	for _, raw := range []string{"", "all", "OWN", "admin"} {
		if _, err := ParseScope(raw); err == nil {
			t.Fatalf("expected error for scope %q", raw)
		}
	}
}

func TestCombineScopeFullDominates(t *testing.T) {
	cases := []struct {
		a, b, want Scope
	}{
		{0, 0, 0},
		{0, ScopeOwn, ScopeOwn},
		{ScopeOwn, 0, ScopeOwn},
		{ScopeOwn, ScopeOwn, ScopeOwn},
		{ScopeOwn, ScopeFull, ScopeFull},
		{ScopeFull, ScopeOwn, ScopeFull},
		{ScopeFull, ScopeFull, ScopeFull},
	}
	for _, c := range cases {
		if got := CombineScope(c.a, c.b); got != c.want {
			t.Fatalf("CombineScope(%v,%v)=%v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCombineScopeMonotonic(t *testing.T) {
	// Adding any grant never narrows the combined scope.
	for _, base := range []Scope{0, ScopeOwn, ScopeFull} {
		for _, extra := range []Scope{ScopeOwn, ScopeFull} {
			combined := CombineScope(base, extra)
			if combined < base {
				t.Fatalf("combining %v with %v narrowed to %v", base, extra, combined)
			}
		}
	}
}

func TestDecisionFilter(t *testing.T) {
	own := Allow(ScopeOwn).Filter("user-1")
	if own.Scope != ScopeOwn || own.OwnerID != "user-1" {
		t.Fatalf("unexpected own filter: %+v", own)
	}
	full := Allow(ScopeFull).Filter("user-1")
	if full.Scope != ScopeFull || full.OwnerID != "" {
		t.Fatalf("full filter must not carry an owner: %+v", full)
	}
	deny := DenyFor(ReasonNoGrant).Filter("user-1")
	if deny.Scope != 0 {
		t.Fatalf("deny must yield an empty filter: %+v", deny)
	}
}

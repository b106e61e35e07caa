package authz

import (
	"context"
	"errors"
	"testing"
)

// failingStore simulates an unreachable role store.
type failingStore struct{ err error }

func (f failingStore) RolesForUser(context.Context, string) ([]string, error) { return nil, f.err }
func (f failingStore) Grants(context.Context, string) ([]Grant, error)        { return nil, f.err }
func (f failingStore) RoleActive(context.Context, string) (bool, error)       { return false, f.err }

func seedTeacherTenant(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	store.SetGrants("teacher", Grant{Module: ModuleStudents, Action: ActionRead, Scope: "own"})
	store.SetGrants("admin",
		Grant{Module: ModuleStudents, Action: ActionRead, Scope: "full"},
		Grant{Module: ModuleStudents, Action: ActionDelete, Scope: "full"},
	)
	store.AssignRole("u-teacher", "teacher")
	store.AssignRole("u-admin", "teacher")
	store.AssignRole("u-admin", "admin")
	return store
}

func TestResolveNoRolesDenies(t *testing.T) {
	r := NewResolver(NewMemoryStore(), nil)
	_, err := r.Resolve(context.Background(), "nobody", ModuleStudents, ActionRead)
	if !errors.Is(err, ErrNoGrant) {
		t.Fatalf("expected ErrNoGrant, got %v", err)
	}
}

func TestResolveOwnScope(t *testing.T) {
	r := NewResolver(seedTeacherTenant(t), nil)
	scope, err := r.Resolve(context.Background(), "u-teacher", ModuleStudents, ActionRead)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if scope != ScopeOwn {
		t.Fatalf("expected own, got %v", scope)
	}
	if _, err := r.Resolve(context.Background(), "u-teacher", ModuleStudents, ActionDelete); !errors.Is(err, ErrNoGrant) {
		t.Fatalf("expected ErrNoGrant for delete, got %v", err)
	}
}

func TestResolveFullDominatesAcrossRoles(t *testing.T) {
	r := NewResolver(seedTeacherTenant(t), nil)
	scope, err := r.Resolve(context.Background(), "u-admin", ModuleStudents, ActionRead)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if scope != ScopeFull {
		t.Fatalf("expected full to dominate own, got %v", scope)
	}
}

func TestResolveUnknownOperationShortCircuits(t *testing.T) {
	// Catalog check dominates: even a store that would error is never asked.
	r := NewResolver(failingStore{err: errors.New("down")}, nil)
	_, err := r.Resolve(context.Background(), "u-admin", "payroll", ActionRead)
	if !errors.Is(err, ErrNoGrant) {
		t.Fatalf("expected ErrNoGrant, got %v", err)
	}
}

func TestResolveSkipsInactiveRoles(t *testing.T) {
	store := seedTeacherTenant(t)
	store.SetRoleActive("admin", false)
	r := NewResolver(store, nil)
	scope, err := r.Resolve(context.Background(), "u-admin", ModuleStudents, ActionRead)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if scope != ScopeOwn {
		t.Fatalf("inactive role still granted: got %v", scope)
	}
}

func TestResolveSkipsMalformedGrants(t *testing.T) {
	store := NewMemoryStore()
	store.SetGrants("broken",
		Grant{Module: "payroll", Action: ActionRead, Scope: "full"},
		Grant{Module: ModuleStudents, Action: ActionRead, Scope: "everything"},
		Grant{Module: ModuleStudents, Action: ActionRead, Scope: "own"},
	)
	store.AssignRole("u-1", "broken")
	r := NewResolver(store, nil)

	scope, err := r.Resolve(context.Background(), "u-1", ModuleStudents, ActionRead)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if scope != ScopeOwn {
		t.Fatalf("malformed grants must be ignored, got %v", scope)
	}
	if _, err := r.Resolve(context.Background(), "u-1", "payroll", ActionRead); !errors.Is(err, ErrNoGrant) {
		t.Fatalf("grant outside the catalog must never match, got %v", err)
	}
}

func TestResolveStoreErrorFailsClosed(t *testing.T) {
	r := NewResolver(failingStore{err: errors.New("connection refused")}, nil)
	_, err := r.Resolve(context.Background(), "u-1", ModuleStudents, ActionRead)
	if err == nil || errors.Is(err, ErrNoGrant) {
		t.Fatalf("expected store error, got %v", err)
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := NewResolver(seedTeacherTenant(t), nil)
	first, err1 := r.Resolve(context.Background(), "u-admin", ModuleStudents, ActionRead)
	second, err2 := r.Resolve(context.Background(), "u-admin", ModuleStudents, ActionRead)
	if err1 != nil || err2 != nil {
		t.Fatalf("Resolve errors: %v, %v", err1, err2)
	}
	if first != second {
		t.Fatalf("same evaluation diverged: %v vs %v", first, second)
	}
}

func TestResolveRolesDuplicateGrantsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	store.SetGrants("a", Grant{Module: ModuleGrades, Action: ActionRead, Scope: "own"})
	store.SetGrants("b", Grant{Module: ModuleGrades, Action: ActionRead, Scope: "own"})
	r := NewResolver(store, nil)

	scope, err := r.ResolveRoles(context.Background(), []string{"a", "b"}, ModuleGrades, ActionRead)
	if err != nil {
		t.Fatalf("ResolveRoles: %v", err)
	}
	if scope != ScopeOwn {
		t.Fatalf("duplicate own grants must union to own, got %v", scope)
	}
}

func TestResolveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewResolver(seedTeacherTenant(t), nil)
	_, err := r.Resolve(ctx, "u-teacher", ModuleStudents, ActionRead)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("canceled lookup must resolve to a store failure, got %v", err)
	}
}

package rbac

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"schoolcore.org/internal/authz"
)

// fakeStore is a minimal in-memory Store for service tests.
type fakeStore struct {
	tenants     map[string]Tenant
	users       map[string]User
	roles       map[string]Role
	grants      map[string][]authz.Grant
	assignments map[string][]Assignment
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:     map[string]Tenant{},
		users:       map[string]User{},
		roles:       map[string]Role{},
		grants:      map[string][]authz.Grant{},
		assignments: map[string][]Assignment{},
	}
}

func (f *fakeStore) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) CreateTenant(_ context.Context, name string) (Tenant, error) {
	t := Tenant{ID: f.id(), Name: name, Status: authz.StatusActive, CreatedAt: time.Now()}
	f.tenants[t.ID] = t
	return t, nil
}

func (f *fakeStore) ListTenants(context.Context) ([]Tenant, error) {
	out := make([]Tenant, 0, len(f.tenants))
	for _, t := range f.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) GetTenant(_ context.Context, id string) (Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) SetTenantStatus(_ context.Context, id, status string) (Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	t.Status = status
	f.tenants[id] = t
	return t, nil
}

func (f *fakeStore) CreateUser(_ context.Context, tenantID, email, passwordHash, status string) (User, error) {
	if _, ok := f.tenants[tenantID]; !ok {
		return User{}, ErrNotFound
	}
	u := User{ID: f.id(), TenantID: tenantID, Email: email, PasswordHash: passwordHash, Status: status}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) ListUsers(_ context.Context, tenantID string) ([]User, error) {
	var out []User
	for _, u := range f.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (User, error) {
	u, ok := f.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) SetUserStatus(_ context.Context, userID, status string) (User, error) {
	u, ok := f.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Status = status
	f.users[userID] = u
	return u, nil
}

func (f *fakeStore) CreateRole(_ context.Context, tenantID, name, description string) (Role, error) {
	r := Role{ID: f.id(), TenantID: tenantID, Name: name, Description: description, IsSystem: tenantID == ""}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeStore) ListRoles(_ context.Context, tenantID string) ([]Role, error) {
	var out []Role
	for _, r := range f.roles {
		if r.TenantID == tenantID || r.IsSystem {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRole(_ context.Context, roleID string) (Role, error) {
	r, ok := f.roles[roleID]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) DeleteRole(_ context.Context, roleID string) error {
	if _, ok := f.roles[roleID]; !ok {
		return ErrNotFound
	}
	delete(f.roles, roleID)
	delete(f.grants, roleID)
	return nil
}

func (f *fakeStore) SetRoleGrants(_ context.Context, roleID string, grants []authz.Grant) error {
	if _, ok := f.roles[roleID]; !ok {
		return ErrNotFound
	}
	f.grants[roleID] = grants
	return nil
}

func (f *fakeStore) RoleGrants(_ context.Context, roleID string) ([]authz.Grant, error) {
	return f.grants[roleID], nil
}

func (f *fakeStore) AssignRole(_ context.Context, userID, roleID string) (Assignment, error) {
	a := Assignment{UserID: userID, RoleID: roleID, CreatedAt: time.Now()}
	f.assignments[userID] = append(f.assignments[userID], a)
	return a, nil
}

func (f *fakeStore) RemoveAssignment(_ context.Context, userID, roleID string) error {
	list := f.assignments[userID]
	for i, a := range list {
		if a.RoleID == roleID {
			f.assignments[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) Assignments(_ context.Context, userID string) ([]Assignment, error) {
	return f.assignments[userID], nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewService(store, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestCreateTenantValidation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateTenant(context.Background(), "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	tenant, err := svc.CreateTenant(context.Background(), "  Northside High  ")
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if tenant.Name != "Northside High" {
		t.Fatalf("name not trimmed: %q", tenant.Name)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	tenant, _ := svc.CreateTenant(context.Background(), "school")

	cases := []struct {
		tenantID, email, password, status string
	}{
		{"", "a@b.c", "pw", ""},
		{tenant.ID, "not-an-email", "pw", ""},
		{tenant.ID, "a@b.c", "", ""},
		{tenant.ID, "a@b.c", "pw", "banned"},
	}
	for _, c := range cases {
		if _, err := svc.CreateUser(context.Background(), c.tenantID, c.email, c.password, c.status); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", c, err)
		}
	}

	user, err := svc.CreateUser(context.Background(), tenant.ID, "Jane@School.ORG", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "jane@school.org" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Status != authz.StatusActive {
		t.Fatalf("default status not applied: %q", user.Status)
	}
	if user.PasswordHash == "pw" || user.PasswordHash == "" {
		t.Fatal("password stored unhashed")
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	tenant, _ := svc.CreateTenant(context.Background(), "school")
	user, err := svc.CreateUser(context.Background(), tenant.ID, "jane@school.org", "pw", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), "jane@school.org", "pw")
	if err != nil || got.ID != user.ID {
		t.Fatalf("Authenticate: %v, %+v", err, got)
	}
	if _, err := svc.Authenticate(context.Background(), "jane@school.org", "nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "ghost@school.org", "pw"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown email, got %v", err)
	}

	if _, err := svc.SetUserStatus(context.Background(), user.ID, authz.StatusSuspended); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "jane@school.org", "pw"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for suspended user, got %v", err)
	}
}

func TestSetRoleGrantsValidatesCatalog(t *testing.T) {
	svc, store := newTestService(t)
	role, _ := svc.CreateRole(context.Background(), "", "Admin", "")

	err := svc.SetRoleGrants(context.Background(), role.ID, []authz.Grant{
		{Module: "payroll", Action: "read", Scope: "full"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown module, got %v", err)
	}

	err = svc.SetRoleGrants(context.Background(), role.ID, []authz.Grant{
		{Module: authz.ModuleStudents, Action: authz.ActionRead, Scope: "everything"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown scope, got %v", err)
	}

	// own + full for the same operation collapses to full.
	err = svc.SetRoleGrants(context.Background(), role.ID, []authz.Grant{
		{Module: authz.ModuleStudents, Action: authz.ActionRead, Scope: "own"},
		{Module: authz.ModuleStudents, Action: authz.ActionRead, Scope: "full"},
		{Module: authz.ModuleGrades, Action: authz.ActionRead, Scope: "own"},
	})
	if err != nil {
		t.Fatalf("SetRoleGrants: %v", err)
	}
	grants := store.grants[role.ID]
	if len(grants) != 2 {
		t.Fatalf("expected collapsed grants, got %v", grants)
	}
	if grants[0].Module != authz.ModuleStudents || grants[0].Scope != "full" {
		t.Fatalf("full must win for students.read: %v", grants[0])
	}
}

func TestAssignRoleTenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	t1, _ := svc.CreateTenant(context.Background(), "school-1")
	t2, _ := svc.CreateTenant(context.Background(), "school-2")
	user, _ := svc.CreateUser(context.Background(), t1.ID, "u@s1.org", "pw", "")
	foreignRole, _ := svc.CreateRole(context.Background(), t2.ID, "Teacher", "")
	systemRole, _ := svc.CreateRole(context.Background(), "", "Platform Admin", "")

	if _, err := svc.AssignRole(context.Background(), user.ID, foreignRole.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("cross-tenant assignment must fail, got %v", err)
	}
	if _, err := svc.AssignRole(context.Background(), user.ID, systemRole.ID); err != nil {
		t.Fatalf("system role must be assignable anywhere: %v", err)
	}
}

func TestPrincipal(t *testing.T) {
	svc, _ := newTestService(t)
	tenant, _ := svc.CreateTenant(context.Background(), "school")
	user, _ := svc.CreateUser(context.Background(), tenant.ID, "u@s.org", "pw", "")
	role, _ := svc.CreateRole(context.Background(), tenant.ID, "Teacher", "")
	if _, err := svc.AssignRole(context.Background(), user.ID, role.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	p, err := svc.Principal(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if p.TenantID != tenant.ID || p.UserID != user.ID {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if p.TenantStatus != authz.StatusActive || p.UserStatus != authz.StatusActive {
		t.Fatalf("unexpected statuses: %+v", p)
	}
	if len(p.RoleIDs) != 1 || p.RoleIDs[0] != role.ID {
		t.Fatalf("unexpected roles: %v", p.RoleIDs)
	}
}

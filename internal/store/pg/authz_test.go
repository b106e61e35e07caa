package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestRolesForUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select role_id from user_roles").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow("r-1").AddRow("r-2"))

	roles, err := store.RolesForUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("RolesForUser: %v", err)
	}
	if len(roles) != 2 || roles[0] != "r-1" || roles[1] != "r-2" {
		t.Fatalf("unexpected roles: %v", roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGrants(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select module, action, scope").
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"module", "action", "scope"}).
			AddRow("students", "read", "own").
			AddRow("students", "export", "full"))

	grants, err := store.Grants(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Grants: %v", err)
	}
	if len(grants) != 2 || grants[0].Scope != "own" || grants[1].Action != "export" {
		t.Fatalf("unexpected grants: %v", grants)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleActive(t *testing.T) {
	cases := []struct {
		name         string
		isSystem     bool
		tenantStatus any
		want         bool
	}{
		{"tenant role of active tenant", false, "active", true},
		{"tenant role of inactive tenant", false, "inactive", false},
		{"system role without tenant", true, nil, true},
	}
	for _, c := range cases {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`select r\.is_system, t\.status`).
			WithArgs("r-1").
			WillReturnRows(sqlmock.NewRows([]string{"is_system", "status"}).AddRow(c.isSystem, c.tenantStatus))

		active, err := store.RoleActive(context.Background(), "r-1")
		if err != nil {
			t.Fatalf("%s: RoleActive: %v", c.name, err)
		}
		if active != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, active, c.want)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("%s: unmet expectations: %v", c.name, err)
		}
	}
}

func TestRoleActiveUnknownRole(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`select r\.is_system, t\.status`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	active, err := store.RoleActive(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("RoleActive: %v", err)
	}
	if active {
		t.Fatal("deleted role must be inactive")
	}
}

func TestRoleStoreErrorPropagates(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select role_id from user_roles").
		WithArgs("u-1").
		WillReturnError(errors.New("connection refused"))

	if _, err := store.RolesForUser(context.Background(), "u-1"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestLoadRoleSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`select r\.id, r\.is_system, t\.status`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_system", "status"}).
			AddRow("r-teacher", false, "active").
			AddRow("r-stale", false, "inactive").
			AddRow("r-sys", true, nil))
	mock.ExpectQuery("select role_id, module, action, scope from role_grants").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "module", "action", "scope"}).
			AddRow("r-teacher", "students", "read", "own"))
	mock.ExpectQuery("select user_id, role_id from user_roles").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role_id"}).
			AddRow("u-1", "r-teacher").
			AddRow("u-1", "r-sys"))

	snap, err := store.LoadRoleSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadRoleSnapshot: %v", err)
	}
	if !snap.ActiveRoles["r-teacher"] || snap.ActiveRoles["r-stale"] || !snap.ActiveRoles["r-sys"] {
		t.Fatalf("unexpected liveness: %v", snap.ActiveRoles)
	}
	if len(snap.GrantsByRole["r-teacher"]) != 1 {
		t.Fatalf("unexpected grants: %v", snap.GrantsByRole)
	}
	if len(snap.RolesByUser["u-1"]) != 2 {
		t.Fatalf("unexpected assignments: %v", snap.RolesByUser)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

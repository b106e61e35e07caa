package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/roster"
)

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "name", "grade", "created_by", "created_at"})
}

func TestListOwnScopeFiltersByCreator(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("where tenant_id = .1 and created_by = .2").
		WithArgs("t-1", "u-teacher").
		WillReturnRows(studentRows().
			AddRow("s-1", "t-1", "Aigerim", "7A", "u-teacher", time.Now()))

	students, err := store.List(context.Background(), "t-1", authz.ScopeFilter{Scope: authz.ScopeOwn, OwnerID: "u-teacher"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(students) != 1 || students[0].CreatedBy != "u-teacher" {
		t.Fatalf("unexpected students: %v", students)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListFullScopeOmitsCreatorPredicate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("where tenant_id = .1\\s+order by name").
		WithArgs("t-1").
		WillReturnRows(studentRows().
			AddRow("s-1", "t-1", "Aigerim", "7A", "u-teacher", time.Now()).
			AddRow("s-2", "t-1", "Dastan", "7B", "u-other", time.Now()))

	students, err := store.List(context.Background(), "t-1", authz.ScopeFilter{Scope: authz.ScopeFull})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("unexpected students: %v", students)
	}
}

func TestListEmptyFilterQueriesNothing(t *testing.T) {
	store, mock := newMockStore(t)

	students, err := store.List(context.Background(), "t-1", authz.ScopeFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if students != nil {
		t.Fatalf("empty filter must match nothing, got %v", students)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no queries expected: %v", err)
	}
}

func TestGetHidesForeignRowUnderOwnScope(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("where tenant_id = .1 and id = .2").
		WithArgs("t-1", "s-1").
		WillReturnRows(studentRows().
			AddRow("s-1", "t-1", "Aigerim", "7A", "u-other", time.Now()))

	_, err := store.Get(context.Background(), "t-1", "s-1", authz.ScopeFilter{Scope: authz.ScopeOwn, OwnerID: "u-teacher"})
	if !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

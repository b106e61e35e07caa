package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/ids"
	"schoolcore.org/internal/roster"
)

var _ roster.Service = (*Store)(nil)

func (s *Store) Create(ctx context.Context, student roster.Student) (roster.Student, error) {
	student.Name = strings.TrimSpace(student.Name)
	if student.TenantID == "" || student.Name == "" || student.CreatedBy == "" {
		return roster.Student{}, roster.ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		insert into students (id, tenant_id, name, grade, created_by)
		values ($1, $2, $3, $4, $5)
		returning id, tenant_id, name, coalesce(grade, ''), created_by, created_at
	`, ids.New(), student.TenantID, student.Name, nullIfEmpty(student.Grade), student.CreatedBy)
	var out roster.Student
	if err := row.Scan(&out.ID, &out.TenantID, &out.Name, &out.Grade, &out.CreatedBy, &out.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return roster.Student{}, roster.ErrInvalidInput
		}
		return roster.Student{}, err
	}
	return out, nil
}

// List applies the ownership restriction in SQL: own scope adds a created_by
// predicate, full scope only the tenant predicate, and an empty filter
// matches nothing.
func (s *Store) List(ctx context.Context, tenantID string, filter authz.ScopeFilter) ([]roster.Student, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch filter.Scope {
	case authz.ScopeFull:
		rows, err = s.db.QueryContext(ctx, `
			select id, tenant_id, name, coalesce(grade, ''), created_by, created_at
			from students
			where tenant_id = $1
			order by name
		`, tenantID)
	case authz.ScopeOwn:
		rows, err = s.db.QueryContext(ctx, `
			select id, tenant_id, name, coalesce(grade, ''), created_by, created_at
			from students
			where tenant_id = $1 and created_by = $2
			order by name
		`, tenantID, filter.OwnerID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []roster.Student
	for rows.Next() {
		var st roster.Student
		if err := rows.Scan(&st.ID, &st.TenantID, &st.Name, &st.Grade, &st.CreatedBy, &st.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return students, nil
}

func (s *Store) Get(ctx context.Context, tenantID, studentID string, filter authz.ScopeFilter) (roster.Student, error) {
	var st roster.Student
	err := s.db.QueryRowContext(ctx, `
		select id, tenant_id, name, coalesce(grade, ''), created_by, created_at
		from students
		where tenant_id = $1 and id = $2
	`, tenantID, studentID).Scan(&st.ID, &st.TenantID, &st.Name, &st.Grade, &st.CreatedBy, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return roster.Student{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.Student{}, err
	}
	if !roster.Visible(st, filter) {
		return roster.Student{}, roster.ErrNotFound
	}
	return st, nil
}

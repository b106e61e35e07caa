package pg

import (
	"context"
	"database/sql"
	"errors"

	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/ids"
	"schoolcore.org/internal/rbac"
)

var _ rbac.Store = (*Store)(nil)

func (s *Store) CreateTenant(ctx context.Context, name string) (rbac.Tenant, error) {
	var tenant rbac.Tenant
	row := s.db.QueryRowContext(ctx, `
		insert into tenants (id, name, status)
		values ($1, $2, 'active')
		returning id, name, status, created_at, updated_at
	`, ids.New(), name)
	if err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.Tenant{}, rbac.ErrConflict
		}
		return rbac.Tenant{}, err
	}
	return tenant, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]rbac.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, status, created_at, updated_at
		from tenants
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []rbac.Tenant
	for rows.Next() {
		var t rbac.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tenants, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (rbac.Tenant, error) {
	var t rbac.Tenant
	err := s.db.QueryRowContext(ctx, `
		select id, name, status, created_at, updated_at
		from tenants
		where id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Tenant{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Tenant{}, err
	}
	return t, nil
}

func (s *Store) SetTenantStatus(ctx context.Context, id, status string) (rbac.Tenant, error) {
	res, err := s.db.ExecContext(ctx, `
		update tenants set status = $1, updated_at = now() where id = $2
	`, status, id)
	if err != nil {
		return rbac.Tenant{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return rbac.Tenant{}, err
	}
	if aff == 0 {
		return rbac.Tenant{}, rbac.ErrNotFound
	}
	return s.GetTenant(ctx, id)
}

func (s *Store) CreateUser(ctx context.Context, tenantID, email, passwordHash, status string) (rbac.User, error) {
	var user rbac.User
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, tenant_id, email, password_hash, status)
		values ($1, $2, $3, $4, $5)
		returning id, tenant_id, email, password_hash, status, created_at, updated_at
	`, ids.New(), tenantID, email, passwordHash, status)
	if err := scanUser(row, &user); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return rbac.User{}, rbac.ErrConflict
			case pgErrForeignKeyViolation:
				return rbac.User{}, rbac.ErrNotFound
			}
		}
		return rbac.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, tenantID string) ([]rbac.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, tenant_id, email, password_hash, status, created_at, updated_at
		from users
		where tenant_id = $1
		order by email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []rbac.User
	for rows.Next() {
		var u rbac.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (rbac.User, error) {
	var u rbac.User
	err := scanUser(s.db.QueryRowContext(ctx, `
		select id, tenant_id, email, password_hash, status, created_at, updated_at
		from users
		where id = $1
	`, userID), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.User{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (rbac.User, error) {
	var u rbac.User
	err := scanUser(s.db.QueryRowContext(ctx, `
		select id, tenant_id, email, password_hash, status, created_at, updated_at
		from users
		where email = $1
	`, email), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.User{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return u, nil
}

func (s *Store) SetUserStatus(ctx context.Context, userID, status string) (rbac.User, error) {
	res, err := s.db.ExecContext(ctx, `
		update users set status = $1, updated_at = now() where id = $2
	`, status, userID)
	if err != nil {
		return rbac.User{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return rbac.User{}, err
	}
	if aff == 0 {
		return rbac.User{}, rbac.ErrNotFound
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) CreateRole(ctx context.Context, tenantID, name, description string) (rbac.Role, error) {
	var (
		role       rbac.Role
		roleTenant sql.NullString
		desc       sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, tenant_id, name, description, is_system)
		values ($1, $2, $3, $4, $5)
		returning id, tenant_id, name, description, is_system, created_at, updated_at
	`, ids.New(), nullIfEmpty(tenantID), name, nullIfEmpty(description), tenantID == "")
	if err := row.Scan(&role.ID, &roleTenant, &role.Name, &desc, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return rbac.Role{}, rbac.ErrConflict
			case pgErrForeignKeyViolation:
				return rbac.Role{}, rbac.ErrNotFound
			}
		}
		return rbac.Role{}, err
	}
	role.TenantID = roleTenant.String
	role.Description = desc.String
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context, tenantID string) ([]rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, tenant_id, name, description, is_system, created_at, updated_at
		from roles
		where tenant_id = $1 or is_system
		order by is_system desc, name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []rbac.Role
	for rows.Next() {
		var (
			role     rbac.Role
			tenantID sql.NullString
			desc     sql.NullString
		)
		if err := rows.Scan(&role.ID, &tenantID, &role.Name, &desc, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.TenantID = tenantID.String
		role.Description = desc.String
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) GetRole(ctx context.Context, roleID string) (rbac.Role, error) {
	var (
		role     rbac.Role
		tenantID sql.NullString
		desc     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, tenant_id, name, description, is_system, created_at, updated_at
		from roles
		where id = $1
	`, roleID).Scan(&role.ID, &tenantID, &role.Name, &desc, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, err
	}
	role.TenantID = tenantID.String
	role.Description = desc.String
	return role, nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) SetRoleGrants(ctx context.Context, roleID string, grants []authz.Grant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_grants where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, g := range grants {
		if _, err := tx.ExecContext(ctx, `
			insert into role_grants (role_id, module, action, scope)
			values ($1, $2, $3, $4)
		`, roleID, g.Module, g.Action, g.Scope); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return rbac.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) RoleGrants(ctx context.Context, roleID string) ([]authz.Grant, error) {
	return s.Grants(ctx, roleID)
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID string) (rbac.Assignment, error) {
	var a rbac.Assignment
	row := s.db.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		on conflict (user_id, role_id) do update set user_id = excluded.user_id
		returning user_id, role_id, created_at
	`, userID, roleID)
	if err := row.Scan(&a.UserID, &a.RoleID, &a.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return rbac.Assignment{}, rbac.ErrNotFound
		}
		return rbac.Assignment{}, err
	}
	return a, nil
}

func (s *Store) RemoveAssignment(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) Assignments(ctx context.Context, userID string) ([]rbac.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_id, created_at
		from user_roles
		where user_id = $1
		order by created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []rbac.Assignment
	for rows.Next() {
		var a rbac.Assignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, u *rbac.User) error {
	return row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
}

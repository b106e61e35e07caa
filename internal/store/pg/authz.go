package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"schoolcore.org/internal/authz"
)

var (
	_ authz.RoleStore      = (*Store)(nil)
	_ authz.SnapshotLoader = (*Store)(nil)
)

// RolesForUser implements authz.RoleStore.
func (s *Store) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_id from user_roles where user_id = $1 order by created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roleIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roleIDs = append(roleIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roleIDs, nil
}

// Grants implements authz.RoleStore.
func (s *Store) Grants(ctx context.Context, roleID string) ([]authz.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select module, action, scope
		from role_grants
		where role_id = $1
		order by module, action
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []authz.Grant
	for rows.Next() {
		var g authz.Grant
		if err := rows.Scan(&g.Module, &g.Action, &g.Scope); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// RoleActive implements authz.RoleStore. A tenant role is active while its
// tenant is; a system role while it exists; a deleted role is not.
func (s *Store) RoleActive(ctx context.Context, roleID string) (bool, error) {
	var (
		isSystem     bool
		tenantStatus sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select r.is_system, t.status
		from roles r
		left join tenants t on t.id = r.tenant_id
		where r.id = $1
	`, roleID).Scan(&isSystem, &tenantStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if isSystem {
		return true, nil
	}
	return tenantStatus.String == "active", nil
}

// LoadRoleSnapshot implements authz.SnapshotLoader with three full-table
// reads. The snapshot may be internally skewed across the reads by at most
// the query window; the cache's staleness bound already covers that.
func (s *Store) LoadRoleSnapshot(ctx context.Context) (*authz.Snapshot, error) {
	snap := authz.NewSnapshot()

	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.is_system, t.status
		from roles r
		left join tenants t on t.id = r.tenant_id
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			id           string
			isSystem     bool
			tenantStatus sql.NullString
		)
		if err := rows.Scan(&id, &isSystem, &tenantStatus); err != nil {
			rows.Close()
			return nil, err
		}
		snap.ActiveRoles[id] = isSystem || tenantStatus.String == "active"
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		select role_id, module, action, scope from role_grants
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			roleID string
			g      authz.Grant
		)
		if err := rows.Scan(&roleID, &g.Module, &g.Action, &g.Scope); err != nil {
			rows.Close()
			return nil, err
		}
		snap.GrantsByRole[roleID] = append(snap.GrantsByRole[roleID], g)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		select user_id, role_id from user_roles
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var userID, roleID string
		if err := rows.Scan(&userID, &roleID); err != nil {
			rows.Close()
			return nil, err
		}
		snap.RolesByUser[userID] = append(snap.RolesByUser[userID], roleID)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	snap.LoadedAt = time.Now().UTC()
	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

package rbac

import (
	"context"

	"schoolcore.org/internal/authz"
)

// Store describes persistence operations required by the RBAC administration
// layer. Referential integrity (no assignment to a deleted role, no user
// outside its tenant) is the store's responsibility.
type Store interface {
	CreateTenant(ctx context.Context, name string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	GetTenant(ctx context.Context, id string) (Tenant, error)
	SetTenantStatus(ctx context.Context, id, status string) (Tenant, error)

	CreateUser(ctx context.Context, tenantID, email, passwordHash, status string) (User, error)
	ListUsers(ctx context.Context, tenantID string) ([]User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	SetUserStatus(ctx context.Context, userID, status string) (User, error)

	// CreateRole with an empty tenantID records a system role.
	CreateRole(ctx context.Context, tenantID, name, description string) (Role, error)
	// ListRoles returns the tenant's roles plus all system roles.
	ListRoles(ctx context.Context, tenantID string) ([]Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	SetRoleGrants(ctx context.Context, roleID string, grants []authz.Grant) error
	RoleGrants(ctx context.Context, roleID string) ([]authz.Grant, error)

	AssignRole(ctx context.Context, userID, roleID string) (Assignment, error)
	RemoveAssignment(ctx context.Context, userID, roleID string) error
	Assignments(ctx context.Context, userID string) ([]Assignment, error)
}

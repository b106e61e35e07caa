package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schoolcore.org/internal/auth"
	"schoolcore.org/internal/authz"
)

// Service provides validated RBAC administration on top of a Store. It is the
// provisioning side of authorization: the decision engine only ever reads
// what this service writes.
type Service struct {
	store   Store
	catalog *authz.Catalog
}

// NewService constructs the service. A nil catalog falls back to the default
// platform catalog.
func NewService(store Store, catalog *authz.Catalog) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	if catalog == nil {
		catalog = authz.Default
	}
	return &Service{store: store, catalog: catalog}, nil
}

func (s *Service) CreateTenant(ctx context.Context, name string) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, fmt.Errorf("%w: tenant name is required", ErrInvalidInput)
	}
	return s.store.CreateTenant(ctx, name)
}

func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.store.ListTenants(ctx)
}

func (s *Service) GetTenant(ctx context.Context, id string) (Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Tenant{}, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.GetTenant(ctx, id)
}

func (s *Service) SetTenantStatus(ctx context.Context, id, status string) (Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Tenant{}, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if status != authz.StatusActive && status != authz.StatusInactive {
		return Tenant{}, fmt.Errorf("%w: unsupported tenant status %s", ErrInvalidInput, status)
	}
	return s.store.SetTenantStatus(ctx, id, status)
}

func (s *Service) CreateUser(ctx context.Context, tenantID, email, password, status string) (User, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return User{}, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		status = authz.StatusActive
	}
	if !validUserStatus(status) {
		return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, tenantID, email, hash, status)
}

func (s *Service) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return s.store.ListUsers(ctx, tenantID)
}

func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Service) SetUserStatus(ctx context.Context, userID, status string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if !validUserStatus(status) {
		return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}
	return s.store.SetUserStatus(ctx, userID, status)
}

// Authenticate verifies credentials and returns the user on success. Any
// mismatch, unknown email or non-active status yields ErrUnauthorized without
// detail, so callers cannot probe accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return User{}, ErrUnauthorized
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, ErrUnauthorized
	}
	if user.Status != authz.StatusActive {
		return User{}, ErrUnauthorized
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, ErrUnauthorized
	}
	return user, nil
}

// CreateRole records a role. An empty tenantID creates a system role that
// applies across all tenants.
func (s *Service) CreateRole(ctx context.Context, tenantID, name, description string) (Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, tenantID, name, strings.TrimSpace(description))
}

func (s *Service) ListRoles(ctx context.Context, tenantID string) ([]Role, error) {
	return s.store.ListRoles(ctx, strings.TrimSpace(tenantID))
}

// HoldsSystemRole reports whether any of the role ids names a system role.
// Deleted roles are skipped; only real store failures surface.
func (s *Service) HoldsSystemRole(ctx context.Context, roleIDs []string) (bool, error) {
	for _, id := range roleIDs {
		role, err := s.store.GetRole(ctx, strings.TrimSpace(id))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if role.IsSystem {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, roleID)
}

func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, roleID)
}

// SetRoleGrants replaces the role's grants. Every grant must name a catalog
// operation and a known scope; own and full for the same operation collapse
// to full, since full implies own.
func (s *Service) SetRoleGrants(ctx context.Context, roleID string, grants []authz.Grant) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	normalized, err := s.normalizeGrants(grants)
	if err != nil {
		return err
	}
	return s.store.SetRoleGrants(ctx, roleID, normalized)
}

func (s *Service) RoleGrants(ctx context.Context, roleID string) ([]authz.Grant, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.RoleGrants(ctx, roleID)
}

func (s *Service) normalizeGrants(grants []authz.Grant) ([]authz.Grant, error) {
	type opKey struct{ module, action string }
	combined := make(map[opKey]authz.Scope, len(grants))
	var order []opKey
	for _, g := range grants {
		module := strings.TrimSpace(g.Module)
		action := strings.TrimSpace(g.Action)
		if !s.catalog.IsValidOperation(module, action) {
			return nil, fmt.Errorf("%w: unknown operation %s.%s", ErrInvalidInput, module, action)
		}
		scope, err := authz.ParseScope(strings.TrimSpace(g.Scope))
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidInput, module, action, err)
		}
		key := opKey{module, action}
		if _, seen := combined[key]; !seen {
			order = append(order, key)
		}
		combined[key] = authz.CombineScope(combined[key], scope)
	}
	out := make([]authz.Grant, 0, len(order))
	for _, key := range order {
		out = append(out, authz.Grant{
			Module: key.module,
			Action: key.action,
			Scope:  combined[key].String(),
		})
	}
	return out, nil
}

// AssignRole links a user to a role. Tenant roles are only assignable within
// the user's own tenant; system roles are assignable to anyone.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return Assignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return Assignment{}, err
	}
	if !role.IsSystem {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return Assignment{}, err
		}
		if user.TenantID != role.TenantID {
			return Assignment{}, fmt.Errorf("%w: role %s belongs to another tenant", ErrInvalidInput, roleID)
		}
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

func (s *Service) RemoveAssignment(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.RemoveAssignment(ctx, userID, roleID)
}

func (s *Service) Assignments(ctx context.Context, userID string) ([]Assignment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.Assignments(ctx, userID)
}

// Principal loads the authorization-facing view of a user: tenant and user
// status plus assigned role ids. The decision engine consumes it as-is.
func (s *Service) Principal(ctx context.Context, userID string) (authz.Principal, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return authz.Principal{}, err
	}
	tenant, err := s.store.GetTenant(ctx, user.TenantID)
	if err != nil {
		return authz.Principal{}, err
	}
	assignments, err := s.store.Assignments(ctx, userID)
	if err != nil {
		return authz.Principal{}, err
	}
	roleIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		roleIDs = append(roleIDs, a.RoleID)
	}
	return authz.Principal{
		TenantID:     user.TenantID,
		UserID:       user.ID,
		RoleIDs:      roleIDs,
		TenantStatus: tenant.Status,
		UserStatus:   user.Status,
	}, nil
}

func validUserStatus(status string) bool {
	switch status {
	case authz.StatusActive, authz.StatusInactive, authz.StatusSuspended:
		return true
	default:
		return false
	}
}

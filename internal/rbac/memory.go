package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/ids"
)

// MemoryStore is an in-memory Store for development and tests. It enforces
// the same referential rules as the Postgres store.
type MemoryStore struct {
	mu          sync.RWMutex
	tenants     map[string]Tenant
	users       map[string]User
	roles       map[string]Role
	grants      map[string][]authz.Grant
	assignments map[string][]Assignment
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:     make(map[string]Tenant),
		users:       make(map[string]User),
		roles:       make(map[string]Role),
		grants:      make(map[string][]authz.Grant),
		assignments: make(map[string][]Assignment),
	}
}

func (m *MemoryStore) CreateTenant(ctx context.Context, name string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Name == name {
			return Tenant{}, fmt.Errorf("%w: tenant %q already exists", ErrConflict, name)
		}
	}
	now := time.Now().UTC()
	t := Tenant{ID: ids.New(), Name: name, Status: authz.StatusActive, CreatedAt: now, UpdatedAt: now}
	m.tenants[t.ID] = t
	return t, nil
}

func (m *MemoryStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetTenant(ctx context.Context, id string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return Tenant{}, fmt.Errorf("%w: tenant %s", ErrNotFound, id)
	}
	return t, nil
}

func (m *MemoryStore) SetTenantStatus(ctx context.Context, id, status string) (Tenant, error) {
	if err := ctx.Err(); err != nil {
		return Tenant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return Tenant{}, fmt.Errorf("%w: tenant %s", ErrNotFound, id)
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	m.tenants[id] = t
	return t, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, tenantID, email, passwordHash, status string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[tenantID]; !ok {
		return User{}, fmt.Errorf("%w: tenant %s", ErrNotFound, tenantID)
	}
	for _, u := range m.users {
		if u.Email == email {
			return User{}, fmt.Errorf("%w: email %q already registered", ErrConflict, email)
		}
	}
	now := time.Now().UTC()
	u := User{ID: ids.New(), TenantID: tenantID, Email: email, PasswordHash: passwordHash, Status: status, CreatedAt: now, UpdatedAt: now}
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: user %s", ErrNotFound, email)
}

func (m *MemoryStore) SetUserStatus(ctx context.Context, userID, status string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	m.users[userID] = u
	return u, nil
}

func (m *MemoryStore) CreateRole(ctx context.Context, tenantID, name, description string) (Role, error) {
	if err := ctx.Err(); err != nil {
		return Role{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tenantID != "" {
		if _, ok := m.tenants[tenantID]; !ok {
			return Role{}, fmt.Errorf("%w: tenant %s", ErrNotFound, tenantID)
		}
	}
	for _, role := range m.roles {
		if role.TenantID == tenantID && role.Name == name {
			return Role{}, fmt.Errorf("%w: role %q already exists", ErrConflict, name)
		}
	}
	now := time.Now().UTC()
	role := Role{
		ID:          ids.New(),
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		IsSystem:    tenantID == "",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *MemoryStore) ListRoles(ctx context.Context, tenantID string) ([]Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Role
	for _, role := range m.roles {
		if role.TenantID == tenantID || role.IsSystem {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetRole(ctx context.Context, roleID string) (Role, error) {
	if err := ctx.Err(); err != nil {
		return Role{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[roleID]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	return role, nil
}

func (m *MemoryStore) DeleteRole(ctx context.Context, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	delete(m.roles, roleID)
	delete(m.grants, roleID)
	for userID, list := range m.assignments {
		kept := list[:0]
		for _, a := range list {
			if a.RoleID != roleID {
				kept = append(kept, a)
			}
		}
		m.assignments[userID] = kept
	}
	return nil
}

func (m *MemoryStore) SetRoleGrants(ctx context.Context, roleID string, grants []authz.Grant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	m.grants[roleID] = append([]authz.Grant(nil), grants...)
	return nil
}

func (m *MemoryStore) RoleGrants(ctx context.Context, roleID string) ([]authz.Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.roles[roleID]; !ok {
		return nil, fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	return append([]authz.Grant(nil), m.grants[roleID]...), nil
}

func (m *MemoryStore) AssignRole(ctx context.Context, userID, roleID string) (Assignment, error) {
	if err := ctx.Err(); err != nil {
		return Assignment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return Assignment{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if _, ok := m.roles[roleID]; !ok {
		return Assignment{}, fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	for _, a := range m.assignments[userID] {
		if a.RoleID == roleID {
			return a, nil
		}
	}
	a := Assignment{UserID: userID, RoleID: roleID, CreatedAt: time.Now().UTC()}
	m.assignments[userID] = append(m.assignments[userID], a)
	return a, nil
}

func (m *MemoryStore) RemoveAssignment(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.assignments[userID]
	for i, a := range list {
		if a.RoleID == roleID {
			m.assignments[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: assignment %s/%s", ErrNotFound, userID, roleID)
}

func (m *MemoryStore) Assignments(ctx context.Context, userID string) ([]Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Assignment(nil), m.assignments[userID]...), nil
}

// --- authz views ---

// RolesForUser implements authz.RoleStore over the same data the admin API
// mutates, so in-memory deployments stay consistent without a refresh cycle.
func (m *MemoryStore) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.assignments[userID]
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.RoleID)
	}
	return out, nil
}

func (m *MemoryStore) Grants(ctx context.Context, roleID string) ([]authz.Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]authz.Grant(nil), m.grants[roleID]...), nil
}

func (m *MemoryStore) RoleActive(ctx context.Context, roleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[roleID]
	if !ok {
		return false, nil
	}
	if role.IsSystem {
		return true, nil
	}
	tenant, ok := m.tenants[role.TenantID]
	if !ok {
		return false, nil
	}
	return tenant.Status == authz.StatusActive, nil
}

var _ authz.RoleStore = (*MemoryStore)(nil)

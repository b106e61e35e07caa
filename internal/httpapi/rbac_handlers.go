package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"schoolcore.org/internal/audit"
	"schoolcore.org/internal/auth"
	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/rbac"
)

type createTenantRequest struct {
	Name string `json:"name"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type createUserRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Status   string `json:"status"`
}

type createRoleRequest struct {
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	System      bool   `json:"system"`
}

type grantPayload struct {
	Module string `json:"module"`
	Action string `json:"action"`
	Scope  string `json:"scope"`
}

type setGrantsRequest struct {
	Grants []grantPayload `json:"grants"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleTenants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.requireOperation(authz.ModuleTenantSettings, authz.ActionRead, a.listTenants)(w, r)
	case http.MethodPost:
		a.requireOperation(authz.ModuleTenantSettings, authz.ActionUpdate, a.createTenant)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listTenants(w http.ResponseWriter, r *http.Request) {
	// Non-system callers only ever see their own tenant.
	if !a.callerIsSystem(r) {
		tenantID, _ := auth.TenantIDFromContext(r.Context())
		tenant, err := a.rbac.GetTenant(r.Context(), tenantID)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tenants": []rbac.Tenant{tenant}})
		return
	}
	tenants, err := a.rbac.ListTenants(r.Context())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (a *API) createTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenant, err := a.rbac.CreateTenant(r.Context(), req.Name)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.tenant.create", map[string]any{
		"tenant_id": tenant.ID,
		"name":      tenant.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/tenants/%s", tenant.ID))
	writeJSON(w, http.StatusCreated, tenant)
}

func (a *API) handleTenantResource(w http.ResponseWriter, r *http.Request) {
	parts := resourceParts(r.URL.Path, "/v1/tenants/")
	if len(parts) != 2 || parts[1] != "status" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	tenantID := parts[0]
	a.requireOperation(authz.ModuleTenantSettings, authz.ActionUpdate, func(w http.ResponseWriter, r *http.Request) {
		if !a.requireTenant(w, r, tenantID) {
			return
		}
		var req setStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		tenant, err := a.rbac.SetTenantStatus(r.Context(), tenantID, req.Status)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.tenant.status", map[string]any{
			"tenant_id": tenant.ID,
			"status":    tenant.Status,
		})
		writeJSON(w, http.StatusOK, tenant)
	})(w, r)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.requireOperation(authz.ModuleUserManagement, authz.ActionRead, a.listUsers)(w, r)
	case http.MethodPost:
		a.requireOperation(authz.ModuleUserManagement, authz.ActionCreate, a.createUser)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := auth.TenantIDFromContext(r.Context())
	users, err := a.rbac.ListUsers(r.Context(), tenantID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID, _ = auth.TenantIDFromContext(r.Context())
	}
	if !a.requireTenant(w, r, tenantID) {
		return
	}
	user, err := a.rbac.CreateUser(r.Context(), tenantID, req.Email, req.Password, req.Status)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.create", map[string]any{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
		"email":     user.Email,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	parts := resourceParts(r.URL.Path, "/v1/users/")
	if len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	switch {
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.requireOperation(authz.ModuleUserManagement, authz.ActionUpdate, func(w http.ResponseWriter, r *http.Request) {
			a.setUserStatus(w, r, userID)
		})(w, r)
	case len(parts) == 2 && parts[1] == "assignments":
		switch r.Method {
		case http.MethodGet:
			a.requireOperation(authz.ModuleUserManagement, authz.ActionRead, func(w http.ResponseWriter, r *http.Request) {
				a.listAssignments(w, r, userID)
			})(w, r)
		case http.MethodPost:
			a.requireOperation(authz.ModuleUserManagement, authz.ActionUpdate, func(w http.ResponseWriter, r *http.Request) {
				a.assignRole(w, r, userID)
			})(w, r)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 3 && parts[1] == "assignments":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		roleID := parts[2]
		a.requireOperation(authz.ModuleUserManagement, authz.ActionUpdate, func(w http.ResponseWriter, r *http.Request) {
			a.removeAssignment(w, r, userID, roleID)
		})(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) setUserStatus(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := a.requireUserAccess(w, r, userID); !ok {
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.SetUserStatus(r.Context(), userID, req.Status)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.status", map[string]any{
		"user_id": user.ID,
		"status":  user.Status,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) listAssignments(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := a.requireUserAccess(w, r, userID); !ok {
		return
	}
	assignments, err := a.rbac.Assignments(r.Context(), userID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := a.requireUserAccess(w, r, userID); !ok {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// Handing out a system role is itself a cross-tenant act.
	if _, ok := a.requireRoleAccess(w, r, req.RoleID); !ok {
		return
	}
	assignment, err := a.rbac.AssignRole(r.Context(), userID, req.RoleID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.assign_role", map[string]any{
		"user_id": userID,
		"role_id": assignment.RoleID,
	})
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) removeAssignment(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if _, ok := a.requireUserAccess(w, r, userID); !ok {
		return
	}
	if err := a.rbac.RemoveAssignment(r.Context(), userID, roleID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.user.remove_role", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.requireOperation(authz.ModuleRoleManagement, authz.ActionRead, a.listRoles)(w, r)
	case http.MethodPost:
		a.requireOperation(authz.ModuleRoleManagement, authz.ActionCreate, a.createRole)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := auth.TenantIDFromContext(r.Context())
	roles, err := a.rbac.ListRoles(r.Context(), tenantID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenantID := strings.TrimSpace(req.TenantID)
	if req.System {
		// Minting a system role is reserved for system-role holders; a
		// tenant-scoped grant must never escalate across tenants.
		if !a.callerIsSystem(r) {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		tenantID = ""
	} else {
		if tenantID == "" {
			tenantID, _ = auth.TenantIDFromContext(r.Context())
		}
		if !a.requireTenant(w, r, tenantID) {
			return
		}
	}
	role, err := a.rbac.CreateRole(r.Context(), tenantID, req.Name, req.Description)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
		"role_id":   role.ID,
		"tenant_id": role.TenantID,
		"name":      role.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	parts := resourceParts(r.URL.Path, "/v1/roles/")
	if len(parts) == 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.requireOperation(authz.ModuleRoleManagement, authz.ActionDelete, func(w http.ResponseWriter, r *http.Request) {
			a.deleteRole(w, r, roleID)
		})(w, r)
	case len(parts) == 2 && parts[1] == "grants":
		switch r.Method {
		case http.MethodGet:
			a.requireOperation(authz.ModuleRoleManagement, authz.ActionRead, func(w http.ResponseWriter, r *http.Request) {
				a.listGrants(w, r, roleID)
			})(w, r)
		case http.MethodPut:
			a.requireOperation(authz.ModuleRoleManagement, authz.ActionUpdate, func(w http.ResponseWriter, r *http.Request) {
				a.setGrants(w, r, roleID)
			})(w, r)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request, roleID string) {
	if _, ok := a.requireRoleAccess(w, r, roleID); !ok {
		return
	}
	if err := a.rbac.DeleteRole(r.Context(), roleID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.delete", map[string]any{
		"role_id": roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listGrants(w http.ResponseWriter, r *http.Request, roleID string) {
	if _, ok := a.requireRoleAccess(w, r, roleID); !ok {
		return
	}
	grants, err := a.rbac.RoleGrants(r.Context(), roleID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (a *API) setGrants(w http.ResponseWriter, r *http.Request, roleID string) {
	if _, ok := a.requireRoleAccess(w, r, roleID); !ok {
		return
	}
	var req setGrantsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grants := make([]authz.Grant, 0, len(req.Grants))
	for _, g := range req.Grants {
		grants = append(grants, authz.Grant{Module: g.Module, Action: g.Action, Scope: g.Scope})
	}
	if err := a.rbac.SetRoleGrants(r.Context(), roleID, grants); err != nil {
		handleRBACError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "rbac.role.grants.update", map[string]any{
		"role_id": roleID,
		"count":   len(grants),
	})
	w.WriteHeader(http.StatusNoContent)
}

func resourceParts(path, prefix string) []string {
	path = strings.TrimPrefix(path, prefix)
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

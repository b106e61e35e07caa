package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"schoolcore.org/internal/auth"
	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/rbac"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth authenticates the bearer token and attaches the caller's principal
// to the request context. Tenant and user statuses come from the store on
// every request so a deactivation takes effect without waiting for token
// expiry; role ids from the token take precedence when present.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		principal, err := a.rbac.Principal(r.Context(), claims.Subject)
		switch {
		case errors.Is(err, rbac.ErrNotFound):
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		case err != nil:
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		if len(claims.RoleIDs) > 0 {
			principal.RoleIDs = claims.RoleIDs
		}

		ctx := authz.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithUser(ctx, principal.UserID, principal.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOperation gates a handler on one catalog operation. A denial never
// reveals its reason to the caller; allowed requests carry the resulting
// scope filter in the context.
func (a *API) requireOperation(module, action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := authz.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		decision := a.engine.Authorize(r.Context(), principal, module, action)
		if !decision.Allowed {
			if decision.Reason == authz.ReasonStoreUnavailable {
				writeError(w, r, http.StatusServiceUnavailable, "authorization unavailable")
				return
			}
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		ctx := authz.ContextWithFilter(r.Context(), decision.Filter(principal.UserID))
		next(w, r.WithContext(ctx))
	}
}

// callerIsSystem reports whether the caller holds at least one system role.
// A store failure denies: a cross-tenant override must be provable.
func (a *API) callerIsSystem(r *http.Request) bool {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		return false
	}
	holds, err := a.rbac.HoldsSystemRole(r.Context(), principal.RoleIDs)
	if err != nil {
		return false
	}
	return holds
}

// requireTenant confines an admin operation to the caller's own tenant. Full
// scope is full within the tenant; only system-role holders act across
// tenants.
func (a *API) requireTenant(w http.ResponseWriter, r *http.Request, tenantID string) bool {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if ok && tenantID == principal.TenantID {
		return true
	}
	if a.callerIsSystem(r) {
		return true
	}
	writeError(w, r, http.StatusForbidden, "forbidden")
	return false
}

// requireRoleAccess loads the target role and confines role administration:
// tenant roles to their own tenant, system roles to system-role holders.
func (a *API) requireRoleAccess(w http.ResponseWriter, r *http.Request, roleID string) (rbac.Role, bool) {
	role, err := a.rbac.GetRole(r.Context(), roleID)
	if err != nil {
		handleRBACError(w, r, err)
		return rbac.Role{}, false
	}
	if role.IsSystem {
		if a.callerIsSystem(r) {
			return role, true
		}
		writeError(w, r, http.StatusForbidden, "forbidden")
		return rbac.Role{}, false
	}
	if !a.requireTenant(w, r, role.TenantID) {
		return rbac.Role{}, false
	}
	return role, true
}

// requireUserAccess loads the target user and confines user administration
// to the target's tenant.
func (a *API) requireUserAccess(w http.ResponseWriter, r *http.Request, userID string) (rbac.User, bool) {
	user, err := a.rbac.GetUser(r.Context(), userID)
	if err != nil {
		handleRBACError(w, r, err)
		return rbac.User{}, false
	}
	if !a.requireTenant(w, r, user.TenantID) {
		return rbac.User{}, false
	}
	return user, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

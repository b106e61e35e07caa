package authz

import (
	"context"
	"fmt"

	"schoolcore.org/internal/obs"
)

// Resolver computes the effective scope for one (user, module, action) by
// unioning grants across the user's active roles.
type Resolver struct {
	store   RoleStore
	catalog *Catalog
}

// NewResolver wires a resolver to a role store and a catalog. A nil catalog
// falls back to Default.
func NewResolver(store RoleStore, catalog *Catalog) *Resolver {
	if catalog == nil {
		catalog = Default
	}
	return &Resolver{store: store, catalog: catalog}
}

// Catalog exposes the catalog the resolver validates against.
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Resolve computes the scope for the user's assigned roles. It returns
// ErrNoGrant when nothing grants the operation, and a wrapped store error
// when the role store could not be read.
func (r *Resolver) Resolve(ctx context.Context, userID, module, action string) (Scope, error) {
	if !r.catalog.IsValidOperation(module, action) {
		return 0, ErrNoGrant
	}
	roleIDs, err := r.store.RolesForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: roles for user: %w", ErrStoreUnavailable, err)
	}
	return r.combine(ctx, roleIDs, module, action)
}

// ResolveRoles computes the scope for an explicit role set, as carried by an
// authenticated principal. Catalog check happens before any store read.
func (r *Resolver) ResolveRoles(ctx context.Context, roleIDs []string, module, action string) (Scope, error) {
	if !r.catalog.IsValidOperation(module, action) {
		return 0, ErrNoGrant
	}
	return r.combine(ctx, roleIDs, module, action)
}

func (r *Resolver) combine(ctx context.Context, roleIDs []string, module, action string) (Scope, error) {
	if len(roleIDs) == 0 {
		return 0, ErrNoGrant
	}
	var combined Scope
	for _, roleID := range roleIDs {
		active, err := r.store.RoleActive(ctx, roleID)
		if err != nil {
			return 0, fmt.Errorf("%w: role %s: %w", ErrStoreUnavailable, roleID, err)
		}
		if !active {
			continue
		}
		grants, err := r.store.Grants(ctx, roleID)
		if err != nil {
			return 0, fmt.Errorf("%w: grants for role %s: %w", ErrStoreUnavailable, roleID, err)
		}
		for _, g := range grants {
			if !r.catalog.IsValidOperation(g.Module, g.Action) {
				// Data corruption; skip the row rather than fail the request.
				obs.CountMalformedGrant()
				continue
			}
			if g.Module != module || g.Action != action {
				continue
			}
			scope, err := ParseScope(g.Scope)
			if err != nil {
				obs.CountMalformedGrant()
				continue
			}
			combined = CombineScope(combined, scope)
			if combined == ScopeFull {
				return ScopeFull, nil
			}
		}
	}
	if combined == 0 {
		return 0, ErrNoGrant
	}
	return combined, nil
}

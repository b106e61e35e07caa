package authz

import (
	"context"
	"errors"
)

var (
	// ErrNoGrant reports that no role of the user grants the operation.
	ErrNoGrant = errors.New("authz: no grant")
	// ErrStoreUnavailable reports that the role store could not be read.
	// The engine maps it to a deny; authorization never fails open.
	ErrStoreUnavailable = errors.New("authz: role store unavailable")
)

// Grant is one (module, action, scope) row attached to a role, exactly as the
// store recorded it. The resolver validates it against the catalog; rows it
// cannot interpret are skipped, never guessed at.
type Grant struct {
	Module string
	Action string
	Scope  string
}

// RoleStore is the read interface the core consumes. Implementations may be a
// live database, or a cached snapshot with a bounded staleness window (the
// refresh interval); either way every read honors ctx cancellation.
type RoleStore interface {
	// RolesForUser returns the role ids assigned to the user, both
	// tenant-scoped and system-wide.
	RolesForUser(ctx context.Context, userID string) ([]string, error)

	// Grants returns the permission grants attached to the role.
	Grants(ctx context.Context, roleID string) ([]Grant, error)

	// RoleActive reports whether the role may still grant anything. A role
	// is inactive when deleted or when its owning tenant is deactivated;
	// system roles are active as long as they exist.
	RoleActive(ctx context.Context, roleID string) (bool, error)
}

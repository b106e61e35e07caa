package authz

import "fmt"

// Scope is the breadth of a granted action: restricted to rows the principal
// owns, or unrestricted within the tenant.
type Scope uint8

const (
	// ScopeOwn limits the operation to records created by the principal.
	ScopeOwn Scope = iota + 1
	// ScopeFull allows the operation on every record of the tenant.
	ScopeFull
)

func (s Scope) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeFull:
		return "full"
	default:
		return "invalid"
	}
}

// ParseScope maps a stored grant scope to its typed value. Anything other
// than "own" or "full" is a malformed grant.
func ParseScope(raw string) (Scope, error) {
	switch raw {
	case "own":
		return ScopeOwn, nil
	case "full":
		return ScopeFull, nil
	default:
		return 0, fmt.Errorf("unknown scope %q", raw)
	}
}

// CombineScope widens a with b. Scopes only ever widen across roles: full
// dominates own, and own dominates nothing.
func CombineScope(a, b Scope) Scope {
	if a == ScopeFull || b == ScopeFull {
		return ScopeFull
	}
	if a == ScopeOwn || b == ScopeOwn {
		return ScopeOwn
	}
	return 0
}

// Reason enumerates why an operation was denied. Reasons are for server-side
// logs and audit only; the HTTP layer never returns them to clients.
type Reason string

const (
	ReasonTenantInactive   Reason = "tenant_inactive"
	ReasonUserInactive     Reason = "user_inactive"
	ReasonNoGrant          Reason = "no_grant"
	ReasonUnknownOperation Reason = "unknown_operation"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Decision is the outcome of an authorization check: either an allow carrying
// the resolved scope, or a deny carrying a reason.
type Decision struct {
	Allowed bool
	Scope   Scope
	Reason  Reason
}

// Allow builds an allowing decision with the resolved scope.
func Allow(scope Scope) Decision {
	return Decision{Allowed: true, Scope: scope}
}

// DenyFor builds a denying decision.
func DenyFor(reason Reason) Decision {
	return Decision{Reason: reason}
}

// ScopeFilter is the contract handed to the data-access layer on allow. For
// own scope the layer must restrict its query to rows owned by OwnerID.
type ScopeFilter struct {
	Scope   Scope
	OwnerID string
}

// Filter derives the data-access filter for an allowing decision. ownerID is
// the requesting principal's user id; it is only carried for own scope.
func (d Decision) Filter(ownerID string) ScopeFilter {
	if !d.Allowed {
		return ScopeFilter{}
	}
	if d.Scope == ScopeOwn {
		return ScopeFilter{Scope: ScopeOwn, OwnerID: ownerID}
	}
	return ScopeFilter{Scope: ScopeFull}
}

package authz

import "context"

type principalContextKey struct{}
type filterContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithFilter hands the resolved scope filter to the downstream data
// layer after an allowing decision.
func ContextWithFilter(ctx context.Context, filter ScopeFilter) context.Context {
	return context.WithValue(ctx, filterContextKey{}, filter)
}

// FilterFromContext returns the scope filter attached by the authorization
// middleware.
func FilterFromContext(ctx context.Context) (ScopeFilter, bool) {
	if ctx == nil {
		return ScopeFilter{}, false
	}
	v, ok := ctx.Value(filterContextKey{}).(ScopeFilter)
	if !ok || v.Scope == 0 {
		return ScopeFilter{}, false
	}
	return v, true
}

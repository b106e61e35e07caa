package authz

import (
	"context"
	"errors"
	"time"

	"schoolcore.org/internal/obs"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// Principal is the authenticated identity an operation runs as, produced by
// the authentication layer before authorization is consulted.
type Principal struct {
	TenantID     string
	UserID       string
	RoleIDs      []string
	TenantStatus string
	UserStatus   string
}

// AuditEvent describes one authorization decision for the audit trail.
type AuditEvent struct {
	Time     time.Time
	TenantID string
	UserID   string
	Module   string
	Action   string
	Allowed  bool
	Scope    Scope
	Reason   Reason
}

// AuditSink receives decision events. Record must not block and must never
// fail the decision path; at-most-once delivery is acceptable.
type AuditSink interface {
	Record(evt AuditEvent)
}

// Engine is the request-time authorization entry point. It is stateless per
// call and safe for concurrent use: the only shared state is the role store
// snapshot behind the resolver.
type Engine struct {
	resolver *Resolver
	audit    AuditSink
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAuditSink attaches a fire-and-forget audit sink.
func WithAuditSink(sink AuditSink) EngineOption {
	return func(e *Engine) {
		if sink != nil {
			e.audit = sink
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine constructs the decision engine over a resolver.
func NewEngine(resolver *Resolver, opts ...EngineOption) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("authz: resolver is required")
	}
	e := &Engine{resolver: resolver, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Authorize decides whether the principal may perform (module, action).
// Every failure below this boundary is absorbed into a deny with a reason;
// a role store failure denies with ReasonStoreUnavailable, never allows.
func (e *Engine) Authorize(ctx context.Context, p Principal, module, action string) Decision {
	d := e.decide(ctx, p, module, action)
	obs.CountDecision(d.Allowed, string(d.Reason))
	if e.audit != nil {
		e.audit.Record(AuditEvent{
			Time:     e.now().UTC(),
			TenantID: p.TenantID,
			UserID:   p.UserID,
			Module:   module,
			Action:   action,
			Allowed:  d.Allowed,
			Scope:    d.Scope,
			Reason:   d.Reason,
		})
	}
	return d
}

func (e *Engine) decide(ctx context.Context, p Principal, module, action string) Decision {
	if !e.resolver.Catalog().IsValidOperation(module, action) {
		return DenyFor(ReasonUnknownOperation)
	}
	if p.TenantStatus != StatusActive {
		return DenyFor(ReasonTenantInactive)
	}
	if p.UserStatus != StatusActive {
		return DenyFor(ReasonUserInactive)
	}

	var (
		scope Scope
		err   error
	)
	if p.RoleIDs != nil {
		scope, err = e.resolver.ResolveRoles(ctx, p.RoleIDs, module, action)
	} else {
		scope, err = e.resolver.Resolve(ctx, p.UserID, module, action)
	}
	switch {
	case err == nil:
		return Allow(scope)
	case errors.Is(err, ErrNoGrant):
		return DenyFor(ReasonNoGrant)
	default:
		return DenyFor(ReasonStoreUnavailable)
	}
}

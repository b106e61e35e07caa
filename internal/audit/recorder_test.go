package audit

import (
	"testing"

	"schoolcore.org/internal/authz"
)

func TestRecorderDeliversAndCloses(t *testing.T) {
	r := NewRecorder(8)
	for i := 0; i < 5; i++ {
		r.Record(authz.AuditEvent{
			TenantID: "t-1",
			UserID:   "u-1",
			Module:   "students",
			Action:   "read",
			Allowed:  true,
			Scope:    authz.ScopeOwn,
		})
	}
	r.Close()
	if got := r.Dropped(); got != 0 {
		t.Fatalf("dropped = %d, want 0", got)
	}
}

func TestRecorderDropsUnderBackpressure(t *testing.T) {
	// No consumer: the channel is closed-over manually to fill the buffer.
	r := &Recorder{
		ch:   make(chan authz.AuditEvent, 1),
		done: make(chan struct{}),
	}
	evt := authz.AuditEvent{TenantID: "t-1", UserID: "u-1", Module: "grades", Action: "update", Allowed: false, Reason: authz.ReasonNoGrant}

	r.Record(evt) // fills the buffer
	r.Record(evt) // must not block
	r.Record(evt)

	if got := r.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestRecorderCloseIsIdempotent(t *testing.T) {
	r := NewRecorder(1)
	r.Record(authz.AuditEvent{TenantID: "t-1", UserID: "u-1", Module: "students", Action: "read", Allowed: true, Scope: authz.ScopeFull})
	r.Close()
	r.Close()
}

package audit

import (
	"sync"
	"sync/atomic"
	"time"

	"schoolcore.org/internal/authz"
	"schoolcore.org/internal/obs"
)

const defaultBuffer = 1024

// Recorder asynchronously writes authorization decisions to the audit log.
// Record never blocks the decision path: when the buffer is full the event is
// dropped and counted, keeping delivery at-most-once.
type Recorder struct {
	ch      chan authz.AuditEvent
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

var _ authz.AuditSink = (*Recorder)(nil)

// NewRecorder starts the recorder's single consumer goroutine.
func NewRecorder(buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	r := &Recorder{
		ch:   make(chan authz.AuditEvent, buffer),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

// Record implements authz.AuditSink.
func (r *Recorder) Record(evt authz.AuditEvent) {
	select {
	case r.ch <- evt:
	default:
		// Drop when the consumer is behind; the decision path must not wait.
		r.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded under backpressure.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops the consumer after draining buffered events.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.ch)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for evt := range r.ch {
		r.write(evt)
	}
}

func (r *Recorder) write(evt authz.AuditEvent) {
	ts := evt.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	entry := map[string]any{
		"ts":        ts.Format(time.RFC3339Nano),
		"type":      "audit",
		"event":     "authz.decision",
		"tenant_id": evt.TenantID,
		"user_id":   evt.UserID,
		"module":    evt.Module,
		"action":    evt.Action,
		"allowed":   evt.Allowed,
	}
	if evt.Allowed {
		entry["scope"] = evt.Scope.String()
	} else {
		entry["reason"] = string(evt.Reason)
	}
	obs.LogRequest(entry)
}

// Package audit emits workflow events to the external audit sink. The sink
// is a side channel: emission failures are logged and suppressed so they can
// never break the import pipeline.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/requestcontext"
)

// Publisher is the fan-out point for audit events.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Log fills request-scoped fields and emits. Safe on a nil publisher so
// services can treat auditing as optional wiring.
func Log(ctx context.Context, p Publisher, action Action, packageID, subject, detail string) {
	if p == nil {
		return
	}
	p.Emit(ctx, Event{
		Timestamp: time.Now(),
		Action:    action,
		ActorID:   requestcontext.ActorID(ctx),
		PackageID: packageID,
		Subject:   subject,
		Detail:    detail,
		RequestID: requestcontext.RequestID(ctx),
	})
}

// Memory collects events in memory. Test sink.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Emit(_ context.Context, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

package pool

// Lifecycle event names delivered to the pool's event callback.
const (
	EventSessionCreated = "session.created"
	EventSessionClosed  = "session.closed"
	EventSessionFailed  = "session.failed"
	EventPoolShutdown   = "pool.shutdown"
)

// EventFunc receives pool lifecycle events. Session events carry a
// models.SessionStatus payload, EventPoolShutdown carries a ShutdownEvent.
// The pool invokes the callback inline on its own goroutines, so
// implementations that do I/O should hand off and return quickly.
type EventFunc func(event string, payload any)

// ShutdownEvent is the payload for EventPoolShutdown.
type ShutdownEvent struct {
	SessionsClosed  int `json:"sessions_closed"`
	CleanupFailures int `json:"cleanup_failures"`
}

func (m *Manager) emit(event string, payload any) {
	if m.events == nil {
		return
	}
	m.events(event, payload)
}

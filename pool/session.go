package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/models"
)

// State is a session's position in its lifecycle.
type State string

const (
	StateCreated      State = "created"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateBusy         State = "busy"
	StateClosing      State = "closing"
	StateClosed       State = "closed"
)

// Session owns one browsing context and one active page on a shared engine
// handle. Sessions are created and destroyed only by the Manager; callers run
// page operations through Do, which enforces the Ready/Busy gate so two
// operations never interleave on the same page.
type Session struct {
	id         string
	engineKind engine.Kind
	headless   bool
	stealth    bool

	mu           sync.Mutex
	state        State
	target       engine.Target
	currentURL   string
	createdAt    time.Time
	lastActivity time.Time
	viewport     models.Viewport
	timeout      time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newSession(id string, kind engine.Kind, headless, stealth bool, viewport models.Viewport, timeout time.Duration) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		engineKind:   kind,
		headless:     headless,
		stealth:      stealth,
		state:        StateCreated,
		createdAt:    now,
		lastActivity: now,
		viewport:     viewport,
		timeout:      timeout,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// EngineKind returns the engine this session runs on.
func (s *Session) EngineKind() engine.Kind { return s.engineKind }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsReady reports whether the session can accept an operation right now.
// Only StateReady qualifies: a Busy, Closing or Closed session must be
// rejected fast rather than queued behind the in-flight work.
func (s *Session) IsReady() bool {
	return s.State() == StateReady
}

func (s *Session) markInitializing() {
	s.mu.Lock()
	s.state = StateInitializing
	s.mu.Unlock()
}

func (s *Session) markReady(t engine.Target) {
	s.mu.Lock()
	s.target = t
	s.state = StateReady
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Do runs one engine-facing operation against the session's page. The
// Ready/Busy gate is taken atomically: if the session is not Ready the call
// fails with SESSION_NOT_READY and the in-flight operation is untouched.
//
// Raw engine errors never escape. Timeouts come back as OPERATION_TIMEOUT and
// the session returns to Ready; errors that mean the page or engine is gone
// come back as ENGINE_FATAL and the session moves to Closing, after which the
// Manager removes it. Anything else is OPERATION_FAILED and recoverable.
func (s *Session) Do(ctx context.Context, op string, fn func(ctx context.Context, t engine.Target) error) error {
	s.mu.Lock()
	if s.state != StateReady {
		cur := s.state
		s.mu.Unlock()
		return models.NewPoolError(models.ErrCodeSessionNotReady,
			fmt.Sprintf("session %s is %s, not ready", s.id, cur), nil)
	}
	s.state = StateBusy
	target := s.target
	s.mu.Unlock()

	opErr := fn(ctx, target)
	url := target.URL()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	s.currentURL = url

	// A concurrent close may have moved the session to Closing while the
	// operation was in flight; never resurrect it to Ready in that case.
	switch {
	case opErr == nil:
		if s.state == StateBusy {
			s.state = StateReady
		}
		return nil
	case engine.IsFatal(opErr):
		if s.state == StateBusy {
			s.state = StateClosing
		}
		return models.NewPoolError(models.ErrCodeEngineFatal,
			fmt.Sprintf("%s failed, session %s is unusable", op, s.id), opErr)
	case engine.IsTimeout(opErr):
		if s.state == StateBusy {
			s.state = StateReady
		}
		return models.NewPoolError(models.ErrCodeTimeout,
			fmt.Sprintf("%s timed out on session %s", op, s.id), opErr)
	default:
		if s.state == StateBusy {
			s.state = StateReady
		}
		return models.NewPoolError(models.ErrCodeOperationFailed,
			fmt.Sprintf("%s failed on session %s", op, s.id), opErr)
	}
}

// close releases the session's page and context exactly once, in that order.
// Racing callers (operation error handling, explicit removal, shutdown) all
// funnel through the same one-shot guard; later callers block until the first
// finishes and observe the same recorded error.
func (s *Session) close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		target := s.target
		s.mu.Unlock()

		if target != nil {
			s.closeErr = target.Close(ctx)
		}

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
	})
	return s.closeErr
}

// Status returns a point-in-time snapshot for diagnostics.
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionStatus{
		ID:           s.id,
		State:        string(s.state),
		EngineKind:   string(s.engineKind),
		Headless:     s.headless,
		CurrentURL:   s.currentURL,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		Viewport:     s.viewport,
		TimeoutMs:    float64(s.timeout.Milliseconds()),
	}
}

package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/browserd/config"
	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/models"
)

// Manager is the authoritative owner of every live session. The id→Session
// map is the single source of truth: a session exists exactly while its id is
// in the map, and removal detaches before cleanup runs so no stale lookup is
// possible. The capacity check and the slot reservation happen as one atomic
// step under the pool lock, and the lock is never held across an engine call.
//
// Construct one Manager per process and pass it to every consumer; there is
// no package-level instance.
type Manager struct {
	cfg    config.PoolConfig
	driver engine.Driver
	events EventFunc

	lifecycle sync.Mutex // serializes Initialize and Shutdown

	mu          sync.RWMutex
	initialized bool
	sessions    map[string]*Session
	reserved    int // slots held by creations still in flight
	handles     map[engine.Kind]*handleEntry
	launched    map[engine.Kind]bool // kinds with a live engine handle

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// handleEntry guards the shared engine handle for one kind. Its mutex is held
// across the launch call so concurrent first creates of a kind start exactly
// one engine, without blocking the pool lock.
type handleEntry struct {
	mu      sync.Mutex
	browser engine.Browser
	closed  bool // set on shutdown; no launch may follow
}

// CreateOptions override pool defaults for one session. Zero values fall back
// to the configured defaults.
type CreateOptions struct {
	EngineKind string // "chromium", "firefox" or "webkit"
	Viewport   *models.Viewport
	Timeout    time.Duration
	Stealth    bool
}

// NewManager builds a pool over the given driver. The pool is inert until
// Initialize runs.
func NewManager(cfg config.PoolConfig, driver engine.Driver) *Manager {
	return &Manager{
		cfg:      cfg,
		driver:   driver,
		sessions: make(map[string]*Session),
		handles:  make(map[engine.Kind]*handleEntry),
		launched: make(map[engine.Kind]bool),
	}
}

// OnEvent registers a lifecycle event callback. Set it before Initialize; the
// pool reads it without locking afterwards.
func (m *Manager) OnEvent(fn EventFunc) {
	m.events = fn
}

// Initialize prepares the pool and starts the engine driver runtime. No
// browser engine is launched until the first session needs one. Calling
// Initialize on an initialized pool is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	ready := m.initialized
	m.mu.RUnlock()
	if ready {
		return nil
	}

	if _, err := engine.ParseKind(m.cfg.EngineKind); err != nil {
		return models.NewPoolError(models.ErrCodeInvalidInput, "invalid pool configuration", err)
	}

	// Starting the driver may spawn a runtime process; the pool lock is not
	// held for it.
	if err := m.driver.Start(ctx); err != nil {
		return models.NewPoolError(models.ErrCodeEngineInit, "engine driver failed to start", err)
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()

	if m.cfg.IdleTimeout > 0 {
		m.startJanitor()
	}

	slog.Info("session pool initialized",
		"engine", m.cfg.EngineKind,
		"headless", m.cfg.Headless,
		"max_sessions", m.cfg.MaxSessions,
		"default_timeout", m.cfg.DefaultTimeout.String())
	return nil
}

// CreateSession allocates a new session, walking it Created→Initializing→
// Ready before returning it. Capacity is enforced atomically with slot
// reservation: concurrent callers racing for the last free slot never both
// succeed. Engine and page initialization run with the pool lock released;
// on failure the reservation is rolled back and the pool's observable size
// is unchanged.
func (m *Manager) CreateSession(ctx context.Context, opts CreateOptions) (*Session, error) {
	// ── 1. Resolve overrides against pool defaults ──────────────────────
	kind := engine.Kind(m.cfg.EngineKind)
	if opts.EngineKind != "" {
		parsed, err := engine.ParseKind(opts.EngineKind)
		if err != nil {
			return nil, models.NewPoolError(models.ErrCodeInvalidInput, "invalid engine kind", err)
		}
		kind = parsed
	}
	viewport := models.Viewport{Width: m.cfg.ViewportWidth, Height: m.cfg.ViewportHeight}
	if opts.Viewport != nil {
		viewport = *opts.Viewport
	}
	timeout := m.cfg.DefaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	// ── 2. Capacity check + slot reservation, one atomic step ───────────
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil, models.NewPoolError(models.ErrCodeNotInitialized, "session pool is not initialized", nil)
	}
	if len(m.sessions)+m.reserved >= m.cfg.MaxSessions {
		count := len(m.sessions)
		m.mu.Unlock()
		return nil, models.NewPoolError(models.ErrCodeCapacityExceeded,
			fmt.Sprintf("session pool is full (%d/%d)", count, m.cfg.MaxSessions), nil)
	}
	m.reserved++
	entry := m.handles[kind]
	if entry == nil {
		entry = &handleEntry{}
		m.handles[kind] = entry
	}
	m.mu.Unlock()

	// ── 3. Engine handle, context and page, with the lock released ──────
	sess := newSession(uuid.NewString(), kind, m.cfg.Headless, opts.Stealth, viewport, timeout)
	sess.markInitializing()

	target, err := m.acquireTarget(ctx, entry, kind, engine.TargetOptions{
		Viewport:         viewport,
		TimeoutMs:        float64(timeout.Milliseconds()),
		Stealth:          opts.Stealth,
		BlockedResources: m.cfg.BlockedResources,
	})
	if err != nil {
		m.mu.Lock()
		m.reserved--
		m.mu.Unlock()
		if models.HasCode(err, models.ErrCodeNotInitialized) {
			return nil, err
		}
		return nil, models.NewPoolError(models.ErrCodeEngineInit,
			fmt.Sprintf("engine %s could not create a session", kind), err)
	}
	sess.markReady(target)

	// ── 4. Consume the reservation and publish the session ──────────────
	m.mu.Lock()
	m.reserved--
	if !m.initialized {
		// The pool shut down while this session was being built.
		m.mu.Unlock()
		_ = sess.close(ctx)
		return nil, models.NewPoolError(models.ErrCodeNotInitialized, "session pool shut down during session creation", nil)
	}
	m.sessions[sess.id] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	slog.Info("session created",
		"session_id", sess.id,
		"engine", string(kind),
		"session_count", count)
	m.emit(EventSessionCreated, sess.Status())
	return sess, nil
}

// acquireTarget returns a fresh context+page on the shared handle for kind,
// launching the engine on first use. The entry mutex serializes the launch;
// target creation itself runs concurrently across sessions of the same kind.
func (m *Manager) acquireTarget(ctx context.Context, entry *handleEntry, kind engine.Kind, topts engine.TargetOptions) (engine.Target, error) {
	entry.mu.Lock()
	if entry.closed {
		entry.mu.Unlock()
		return nil, models.NewPoolError(models.ErrCodeNotInitialized, "session pool is shutting down", nil)
	}
	browser := entry.browser
	if browser == nil {
		launched, err := m.driver.Launch(ctx, engine.LaunchOptions{Kind: kind, Headless: m.cfg.Headless})
		if err != nil {
			entry.mu.Unlock()
			return nil, err
		}
		entry.browser = launched
		browser = launched

		m.mu.Lock()
		m.launched[kind] = true
		m.mu.Unlock()

		slog.Info("engine launched", "engine", string(kind), "headless", m.cfg.Headless)
	}
	entry.mu.Unlock()

	return browser.NewTarget(ctx, topts)
}

// GetSession looks up a live session by id. Pure read, no mutation.
func (m *Manager) GetSession(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, models.NewPoolError(models.ErrCodeSessionNotFound,
			fmt.Sprintf("no session with id %s", id), nil)
	}
	return sess, nil
}

// Do looks up the session and runs fn through its Ready/Busy gate. When the
// operation reports a fatal engine error the session is removed before the
// error returns, so callers never retry against a dead page.
func (m *Manager) Do(ctx context.Context, id, op string, fn func(ctx context.Context, t engine.Target) error) error {
	sess, err := m.GetSession(id)
	if err != nil {
		return err
	}
	err = sess.Do(ctx, op, fn)
	if models.HasCode(err, models.ErrCodeEngineFatal) {
		slog.Warn("session failed", "session_id", id, "op", op, "error", err)
		m.emit(EventSessionFailed, sess.Status())
		m.RemoveSession(ctx, id)
	}
	return err
}

// RemoveSession detaches the session from the pool and tears it down inline.
// It reports false when the id is unknown or already removed. Removal
// succeeds once the session is detached: cleanup errors are logged, never
// returned.
func (m *Manager) RemoveSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	out := teardownSession(ctx, sess)
	if out.Err != nil {
		slog.Warn("session cleanup failed", "session_id", id, "error", out.Err)
	} else {
		slog.Info("session removed", "session_id", id)
	}
	m.emit(EventSessionClosed, sess.Status())
	return true
}

// Shutdown detaches every session atomically, tears them down with bounded
// concurrency, closes the shared engine handles after their dependents, stops
// the driver runtime and marks the pool not-initialized. It reports one
// cleanup outcome per session and is safe to call more than once; the context
// bounds the total wait.
func (m *Manager) Shutdown(ctx context.Context) []CleanupOutcome {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	// ── 1. Detach all sessions and drop initialized, atomically ─────────
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = false
	detached := m.sessions
	m.sessions = make(map[string]*Session)
	handles := m.handles
	m.handles = make(map[engine.Kind]*handleEntry)
	m.launched = make(map[engine.Kind]bool)
	m.mu.Unlock()

	m.stopJanitor()

	// ── 2. Tear sessions down with bounded fan-out ───────────────────────
	outcomes := teardownAll(ctx, detached, m.cfg.CleanupConcurrency)
	failures := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failures++
			slog.Warn("session cleanup failed", "session_id", out.SessionID, "error", out.Err)
		}
	}

	// ── 3. Close engine handles, now that their pages and contexts are gone
	for kind, entry := range handles {
		entry.mu.Lock()
		entry.closed = true
		browser := entry.browser
		entry.browser = nil
		entry.mu.Unlock()
		if browser == nil {
			continue
		}
		if err := browser.Close(); err != nil {
			slog.Warn("engine close failed", "engine", string(kind), "error", err)
		}
	}

	// ── 4. Stop the driver runtime ───────────────────────────────────────
	if err := m.driver.Stop(); err != nil {
		slog.Warn("engine driver stop failed", "error", err)
	}

	slog.Info("session pool shut down",
		"sessions_closed", len(outcomes),
		"cleanup_failures", failures)
	m.emit(EventPoolShutdown, ShutdownEvent{SessionsClosed: len(outcomes), CleanupFailures: failures})
	return outcomes
}

// Health returns a consistent snapshot of pool state. The session count and
// the id list come from the same lock window, so they never disagree.
func (m *Manager) Health() models.PoolHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	engines := make([]string, 0, len(m.launched))
	for kind := range m.launched {
		engines = append(engines, string(kind))
	}
	sort.Strings(engines)

	status := "healthy"
	switch {
	case !m.initialized:
		status = "not_initialized"
	case len(ids) >= m.cfg.MaxSessions:
		status = "degraded"
	}

	return models.PoolHealth{
		Initialized:      m.initialized,
		Status:           status,
		EngineKind:       m.cfg.EngineKind,
		Headless:         m.cfg.Headless,
		SessionCount:     len(ids),
		MaxSessions:      m.cfg.MaxSessions,
		ActiveSessionIDs: ids,
		EnginesLive:      engines,
	}
}

// Sessions returns a status snapshot of every live session, oldest first.
func (m *Manager) Sessions() []models.SessionStatus {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	out := make([]models.SessionStatus, 0, len(live))
	for _, s := range live {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// startJanitor begins the idle-expiry loop. Only called when IdleTimeout > 0.
func (m *Manager) startJanitor() {
	interval := m.cfg.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	m.janitorStop = make(chan struct{})
	m.janitorDone = make(chan struct{})
	go m.janitor(interval)
}

func (m *Manager) stopJanitor() {
	if m.janitorStop == nil {
		return
	}
	close(m.janitorStop)
	<-m.janitorDone
	m.janitorStop = nil
	m.janitorDone = nil
}

func (m *Manager) janitor(interval time.Duration) {
	defer close(m.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.janitorStop:
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}

// expireIdle removes Ready sessions whose last activity is older than the
// configured idle timeout. Busy sessions are skipped; one that turns Busy
// right after the snapshot is removed anyway, which its in-flight operation
// surfaces as a fatal error, the same as any external removal.
func (m *Manager) expireIdle() {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)

	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	for _, s := range candidates {
		st := s.Status()
		if State(st.State) != StateReady || st.LastActivity.After(cutoff) {
			continue
		}
		if m.RemoveSession(context.Background(), s.ID()) {
			slog.Info("idle session expired",
				"session_id", s.ID(),
				"idle_timeout", m.cfg.IdleTimeout.String())
		}
	}
}

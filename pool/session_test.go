package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/models"
)

func newReadySession(t *testing.T) (*Session, *fakeTarget) {
	t.Helper()
	tgt := &fakeTarget{}
	s := newSession("sess-test", engine.KindChromium, true, false,
		models.Viewport{Width: 1280, Height: 720}, 30*time.Second)
	s.markInitializing()
	s.markReady(tgt)
	return s, tgt
}

func TestIsReadyPerState(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateCreated, false},
		{StateInitializing, false},
		{StateReady, true},
		{StateBusy, false},
		{StateClosing, false},
		{StateClosed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			s, _ := newReadySession(t)
			s.mu.Lock()
			s.state = tt.state
			s.mu.Unlock()
			if got := s.IsReady(); got != tt.want {
				t.Errorf("IsReady in %s = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestDoBusyGate(t *testing.T) {
	s, _ := newReadySession(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Do(ctx, "navigate", func(ctx context.Context, tgt engine.Target) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// Second operation while the first is in flight: rejected, not queued.
	err := s.Do(ctx, "click", func(ctx context.Context, tgt engine.Target) error {
		t.Error("second operation ran on a busy session")
		return nil
	})
	if !models.HasCode(err, models.ErrCodeSessionNotReady) {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeSessionNotReady)
	}
	if got := s.State(); got != StateBusy {
		t.Fatalf("in-flight state = %s, want %s", got, StateBusy)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first operation: %v", err)
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("state after completion = %s, want %s", got, StateReady)
	}
}

func TestDoErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		opErr     error
		wantCode  string
		wantState State
	}{
		{"success returns to ready", nil, "", StateReady},
		{"timeout is recoverable", context.DeadlineExceeded, models.ErrCodeTimeout, StateReady},
		{"fatal moves to closing", engine.ErrEngineClosed, models.ErrCodeEngineFatal, StateClosing},
		{"plain failure is recoverable", errors.New("selector missing"), models.ErrCodeOperationFailed, StateReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReadySession(t)
			err := s.Do(context.Background(), "op", func(ctx context.Context, tgt engine.Target) error {
				return tt.opErr
			})
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
			} else if !models.HasCode(err, tt.wantCode) {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
			if got := s.State(); got != tt.wantState {
				t.Fatalf("state = %s, want %s", got, tt.wantState)
			}
		})
	}
}

func TestDoWrapsRawEngineError(t *testing.T) {
	s, _ := newReadySession(t)
	raw := errors.New("net::ERR_CONNECTION_REFUSED")
	err := s.Do(context.Background(), "navigate", func(ctx context.Context, tgt engine.Target) error {
		return raw
	})

	var perr *models.PoolError
	if !errors.As(err, &perr) {
		t.Fatalf("err %T is not a PoolError", err)
	}
	if !errors.Is(err, raw) {
		t.Fatal("original error not reachable through Unwrap")
	}
}

func TestDoUpdatesActivityAndURL(t *testing.T) {
	s, _ := newReadySession(t)
	before := s.Status().LastActivity

	time.Sleep(5 * time.Millisecond)
	err := s.Do(context.Background(), "navigate", func(ctx context.Context, tgt engine.Target) error {
		_, err := tgt.Navigate(ctx, "https://example.com", engine.NavigateOptions{})
		return err
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	st := s.Status()
	if st.CurrentURL != "https://example.com" {
		t.Errorf("current url = %q, want https://example.com", st.CurrentURL)
	}
	if !st.LastActivity.After(before) {
		t.Error("last activity not advanced by the operation")
	}
}

func TestDoOnClosedSession(t *testing.T) {
	s, _ := newReadySession(t)
	if err := s.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	err := s.Do(context.Background(), "click", func(ctx context.Context, tgt engine.Target) error {
		t.Error("operation ran on a closed session")
		return nil
	})
	if !models.HasCode(err, models.ErrCodeSessionNotReady) {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeSessionNotReady)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, tgt := newReadySession(t)
	tgt.closeErr = errors.New("already detached")

	first := s.close(context.Background())
	second := s.close(context.Background())

	if got := tgt.closeCount(); got != 1 {
		t.Fatalf("target closed %d times, want 1", got)
	}
	if !errors.Is(first, tgt.closeErr) || !errors.Is(second, tgt.closeErr) {
		t.Fatalf("close errors = %v / %v, want both %v", first, second, tgt.closeErr)
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state = %s, want %s", got, StateClosed)
	}
}

func TestCloseConcurrent(t *testing.T) {
	s, tgt := newReadySession(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.close(context.Background())
		}()
	}
	wg.Wait()

	if got := tgt.closeCount(); got != 1 {
		t.Fatalf("target closed %d times under racing callers, want 1", got)
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state = %s, want %s", got, StateClosed)
	}
}

func TestCloseDuringBusyDoesNotResurrect(t *testing.T) {
	s, _ := newReadySession(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Do(ctx, "navigate", func(ctx context.Context, tgt engine.Target) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := s.close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(release)
	<-done

	// The completed operation must not pull a closed session back to Ready.
	if got := s.State(); got != StateClosed {
		t.Fatalf("state = %s, want %s", got, StateClosed)
	}
}

func TestStatusSnapshot(t *testing.T) {
	s, _ := newReadySession(t)
	st := s.Status()

	if st.ID != "sess-test" {
		t.Errorf("id = %q, want sess-test", st.ID)
	}
	if st.State != string(StateReady) {
		t.Errorf("state = %q, want %s", st.State, StateReady)
	}
	if st.EngineKind != string(engine.KindChromium) {
		t.Errorf("engine kind = %q, want %s", st.EngineKind, engine.KindChromium)
	}
	if !st.Headless {
		t.Error("headless = false, want true")
	}
	if st.TimeoutMs != 30000 {
		t.Errorf("timeout ms = %v, want 30000", st.TimeoutMs)
	}
	if st.CreatedAt.IsZero() || st.LastActivity.IsZero() {
		t.Error("timestamps not populated")
	}
}

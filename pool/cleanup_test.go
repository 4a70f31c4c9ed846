package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/models"
)

func makeClosableSessions(t *testing.T, n int) (map[string]*Session, []*fakeTarget) {
	t.Helper()
	sessions := make(map[string]*Session, n)
	targets := make([]*fakeTarget, 0, n)
	for i := 0; i < n; i++ {
		tgt := &fakeTarget{}
		s := newSession(fmt.Sprintf("sess-%d", i), engine.KindChromium, true, false,
			models.Viewport{Width: 1280, Height: 720}, 30*time.Second)
		s.markReady(tgt)
		sessions[s.ID()] = s
		targets = append(targets, tgt)
	}
	return sessions, targets
}

func TestTeardownSession(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		sessions, _ := makeClosableSessions(t, 1)
		for _, s := range sessions {
			out := teardownSession(context.Background(), s)
			if out.SessionID != s.ID() || out.Err != nil {
				t.Fatalf("outcome = %+v, want clean outcome for %s", out, s.ID())
			}
		}
	})
	t.Run("failure is wrapped", func(t *testing.T) {
		sessions, targets := makeClosableSessions(t, 1)
		targets[0].closeErr = errors.New("context already gone")
		for _, s := range sessions {
			out := teardownSession(context.Background(), s)
			if !models.HasCode(out.Err, models.ErrCodeCleanup) {
				t.Fatalf("outcome err = %v, want %s", out.Err, models.ErrCodeCleanup)
			}
			if s.State() != StateClosed {
				t.Fatalf("state = %s, want %s even after a failed close", s.State(), StateClosed)
			}
		}
	})
}

func TestTeardownAll(t *testing.T) {
	sessions, targets := makeClosableSessions(t, 5)

	outcomes := teardownAll(context.Background(), sessions, 2)
	if len(outcomes) != 5 {
		t.Fatalf("got %d outcomes, want 5", len(outcomes))
	}
	seen := make(map[string]bool)
	for _, out := range outcomes {
		if out.Err != nil {
			t.Errorf("session %s: unexpected cleanup error %v", out.SessionID, out.Err)
		}
		if seen[out.SessionID] {
			t.Errorf("duplicate outcome for %s", out.SessionID)
		}
		seen[out.SessionID] = true
	}
	for _, tgt := range targets {
		if got := tgt.closeCount(); got != 1 {
			t.Errorf("target closed %d times, want 1", got)
		}
	}
}

func TestTeardownAllIsolatesFailures(t *testing.T) {
	sessions, targets := makeClosableSessions(t, 3)
	targets[1].closeErr = errors.New("page crashed mid close")

	outcomes := teardownAll(context.Background(), sessions, 2)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	failures := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("got %d failures, want 1", failures)
	}
	// Every session still reached Closed: one failure never stops the batch.
	for _, s := range sessions {
		if s.State() != StateClosed {
			t.Errorf("session %s state = %s, want %s", s.ID(), s.State(), StateClosed)
		}
	}
}

func TestTeardownAllEmpty(t *testing.T) {
	if out := teardownAll(context.Background(), nil, 4); out != nil {
		t.Fatalf("outcomes = %v, want nil", out)
	}
}

func TestTeardownAllExpiredContext(t *testing.T) {
	sessions, _ := makeClosableSessions(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := teardownAll(ctx, sessions, 1)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want one per session even past the deadline", len(outcomes))
	}
	for _, out := range outcomes {
		if !models.HasCode(out.Err, models.ErrCodeCleanup) {
			t.Errorf("session %s: err = %v, want %s", out.SessionID, out.Err, models.ErrCodeCleanup)
		}
	}
}

func TestTeardownAllLimitFloor(t *testing.T) {
	sessions, _ := makeClosableSessions(t, 2)
	outcomes := teardownAll(context.Background(), sessions, 0)
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2 with a clamped limit", len(outcomes))
	}
}

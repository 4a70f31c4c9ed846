package pool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/use-agent/browserd/models"
)

// CleanupOutcome records the result of tearing down one session. Err is nil
// on clean teardown and carries a CLEANUP_FAILED PoolError otherwise.
type CleanupOutcome struct {
	SessionID string
	Err       error
}

// teardownSession releases one session's page and context. The shared engine
// handle stays up for the remaining sessions of that kind; it is pool-scoped
// and released only on shutdown. The returned outcome is for recording:
// callers log cleanup failures, they never propagate them.
func teardownSession(ctx context.Context, s *Session) CleanupOutcome {
	err := s.close(ctx)
	if err != nil {
		err = models.NewPoolError(models.ErrCodeCleanup,
			fmt.Sprintf("cleanup of session %s", s.ID()), err)
	}
	return CleanupOutcome{SessionID: s.ID(), Err: err}
}

// teardownAll closes the given sessions concurrently, at most limit at a
// time, and reports exactly one outcome per session. One session failing or
// the context expiring never aborts the rest of the batch.
func teardownAll(ctx context.Context, sessions map[string]*Session, limit int) []CleanupOutcome {
	if len(sessions) == 0 {
		return nil
	}
	if limit < 1 {
		limit = 1
	}

	var (
		sem      = semaphore.NewWeighted(int64(limit))
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make([]CleanupOutcome, 0, len(sessions))
	)
	record := func(out CleanupOutcome) {
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
	}

	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				// Shutdown deadline hit before this session's turn. Record
				// the miss so the caller still sees one outcome per session.
				record(CleanupOutcome{
					SessionID: s.ID(),
					Err: models.NewPoolError(models.ErrCodeCleanup,
						fmt.Sprintf("cleanup of session %s not attempted", s.ID()), err),
				})
				return
			}
			defer sem.Release(1)
			record(teardownSession(ctx, s))
		}(s)
	}
	wg.Wait()
	return outcomes
}

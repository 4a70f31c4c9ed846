package engine

import (
	"context"
	"errors"

	"github.com/playwright-community/playwright-go"
)

// ErrEngineClosed signals that the browser, context or page backing an
// operation is gone. Operations failing with it are unrecoverable for the
// session that issued them.
var ErrEngineClosed = errors.New("engine: browser or target closed")

// IsTimeout reports whether err is an operation timeout. Timeouts are
// recoverable: the target stays usable and the caller may retry.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, playwright.ErrTimeout)
}

// IsFatal reports whether err means the engine resources backing a session
// are no longer usable and the session must be torn down.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEngineClosed) || errors.Is(err, playwright.ErrTargetClosed)
}

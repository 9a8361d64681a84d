// Package fsread reads file contents with the backoff policy needed to
// tolerate watchers that fire before an editor has released its write
// handle.
package fsread

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/c360studio/hotreload/internal/errs"
)

// InitialDelay is slept once before the first read attempt, giving the
// writer a head start.
const InitialDelay = 20 * time.Millisecond

// RetryDelay is slept between subsequent attempts.
const RetryDelay = 100 * time.Millisecond

// MaxAttempts bounds the number of open-for-read attempts.
const MaxAttempts = 10

// SilentAttempts is how many of the early attempts swallow their error
// rather than surfacing it; a file that becomes readable within this
// window never logs a transient failure.
const SilentAttempts = 8

// sleep is overridable in tests to avoid the real backoff wall-clock cost.
var sleep = time.Sleep

// ReadText reads path's contents as text with the backoff policy: an
// initial 20ms delay, then up to MaxAttempts open-for-read attempts spaced
// RetryDelay apart. Errors from the first SilentAttempts attempts are
// swallowed (not logged); persistent failure surfaces as errs.Transient.
// onRetry, if non-nil, is called once for every failed attempt so a caller
// can track retry volume without this package knowing about metrics.
// logger may be nil.
func ReadText(ctx context.Context, logger *slog.Logger, path string, onRetry func()) (string, error) {
	sleep(InitialDelay)

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", errs.NewTransient(ctx.Err())
		default:
		}

		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		lastErr = err
		if onRetry != nil {
			onRetry()
		}

		if attempt > SilentAttempts && logger != nil {
			logger.Debug("fsread: retrying after read failure", "path", path, "attempt", attempt, "error", err)
		}

		if attempt < MaxAttempts {
			sleep(RetryDelay)
		}
	}

	return "", errs.NewTransient(lastErr)
}

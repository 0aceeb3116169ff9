// Package poll implements the status-polling primitive used to track
// remote builds: probe an endpoint at a fixed interval until it yields a
// value or the polling budget runs out.
package poll

import (
	"context"
	"errors"
	"time"

	"remotebuild/internal/logger"
)

// ErrTimeout is returned when the polling budget is exhausted before the
// probe yields a value.
var ErrTimeout = errors.New("polling timed out")

// ErrIndeterminate is returned when the probe failed (transport or parse
// error) more consecutive times than Options.MaxIndeterminate allows.
var ErrIndeterminate = errors.New("too many consecutive indeterminate polls")

// Probe performs one status check. It returns the value, whether the value
// is ready, and any error encountered. A false ready with a nil error means
// the remote answered but the value is not available yet; an error means the
// check itself could not be completed.
type Probe[T any] func(ctx context.Context) (T, bool, error)

// Options controls the polling cadence
type Options struct {
	// Interval is the delay between successive probes
	Interval time.Duration
	// Timeout is the total polling budget. Elapsed time accumulates as
	// interval plus measured probe latency, and is checked before each
	// probe, so a slow remote cannot stretch the budget.
	Timeout time.Duration
	// MaxIndeterminate caps consecutive probe errors before polling gives
	// up with ErrIndeterminate. Zero means unlimited: probe errors are
	// treated the same as not-ready, and a permanently broken endpoint
	// polls the full budget.
	MaxIndeterminate int
}

// Until repeatedly invokes probe until it reports ready, the budget is
// exhausted, or ctx is cancelled. Probe errors do not abort the loop; they
// are logged and treated as not-ready, subject to MaxIndeterminate.
func Until[T any](ctx context.Context, probe Probe[T], opts Options) (T, error) {
	var zero T
	var elapsed time.Duration
	indeterminate := 0

	for {
		if elapsed > opts.Timeout {
			return zero, ErrTimeout
		}

		start := time.Now()
		value, ready, err := probe(ctx)
		latency := time.Since(start)

		if err != nil {
			// A failed check is not a failed poll: the remote may be
			// mid-restart or the response truncated. Keep polling.
			indeterminate++
			logger.Debug("poll check failed, treating as not ready",
				"error", err, "consecutive", indeterminate)
			if opts.MaxIndeterminate > 0 && indeterminate >= opts.MaxIndeterminate {
				return zero, ErrIndeterminate
			}
		} else {
			indeterminate = 0
			if ready {
				return value, nil
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(opts.Interval):
		}

		elapsed += opts.Interval + latency
	}
}

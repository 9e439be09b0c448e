package agentruntime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry policy constants (spec §4.4: "exponential backoff (base 200 ms,
// factor 2, jitter ±25%, cap 30 s) for Transient and RateLimited up to 5
// attempts").
const (
	backoffBase       = 200 * time.Millisecond
	backoffFactor     = 2.0
	backoffJitter     = 0.25
	backoffCap        = 30 * time.Second
	maxInvokeAttempts = 5
)

// newBackoff builds the exponential-backoff policy spec §4.4 specifies,
// modeled on pkg/mcp/recovery.go's named retry-tuning constants.
func newBackoff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     backoffBase,
		RandomizationFactor: backoffJitter,
		Multiplier:          backoffFactor,
		MaxInterval:         backoffCap,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithMaxRetries(b, maxInvokeAttempts-1)
}

// InvokeWithRetry calls r.Invoke, retrying Transient and RateLimited
// failures with backoff up to maxInvokeAttempts total attempts, and a
// Timeout once; a second Timeout is returned without further retry.
// MalformedResponse and any other semantic error propagate immediately
// without retry at this layer (spec §4.4: "Semantic errors ... propagate
// upward without retry here" — the MalformedResponse repair re-prompt is
// pkg/supervisor's invokeWithRepair).
func InvokeWithRetry(ctx context.Context, runner Invoker, req Request) (*Response, error) {
	log := slog.With("tool", req.Tool)
	attempt := 0
	timeouts := 0

	operation := func() (*Response, error) {
		attempt++
		resp, err := runner.Invoke(ctx, req)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, ErrTimeout) {
			timeouts++
			if timeouts > 1 {
				return nil, backoff.Permanent(err)
			}
		}

		if isRetryable(err) {
			log.Warn("agent invocation failed, retrying", "attempt", attempt, "error", err)
			return nil, err
		}

		return nil, backoff.Permanent(err)
	}

	return backoff.RetryWithData(operation, backoff.WithContext(newBackoff(), ctx))
}

// isRetryable reports whether err is eligible for local backoff retry:
// Transient transport failures, RateLimited responses, and a single
// Timeout (spec §4.8: "Timeout ... counted as Transient once, then
// fatal" — InvokeWithRetry enforces the "then fatal" half by making a
// second timeout within the same call permanent).
func isRetryable(err error) bool {
	var transient *TransientError
	var rateLimited *RateLimitedError
	return errors.As(err, &transient) || errors.As(err, &rateLimited) || errors.Is(err, ErrTimeout)
}

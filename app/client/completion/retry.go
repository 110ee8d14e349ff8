package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"multichat/app/util/metrics"

	"github.com/cenkalti/backoff/v4"
)

type RetryOptions struct {
	Provider    string
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// Retrying retries transient failures of the wrapped client with bounded exponential backoff.
type Retrying struct {
	inner Client
	opts  RetryOptions
}

func NewRetrying(inner Client, opts RetryOptions) *Retrying {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	return &Retrying{
		inner: inner,
		opts:  opts,
	}
}

func (r *Retrying) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.Base
	policy.MaxInterval = r.opts.Cap
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	var result string
	attempt := 0

	operation := func() error {
		attempt++

		text, err := r.inner.Complete(ctx, messages, params)
		if err != nil {
			metrics.CompletionRequests.WithLabelValues(r.opts.Provider, "error").Inc()
			return err
		}

		metrics.CompletionRequests.WithLabelValues(r.opts.Provider, "ok").Inc()
		result = text

		return nil
	}

	notify := func(err error, next time.Duration) {
		slog.WarnContext(ctx, "Completion attempt failed, retrying",
			"provider", r.opts.Provider,
			"attempt", attempt,
			"next_in", next,
			"error", err,
		)
	}

	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.opts.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(operation, bounded, notify); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		return "", &AttemptsError{Attempts: attempt, Err: err}
	}

	return result, nil
}

// AttemptsError is the terminal failure after the retry budget is spent or a permanent error is hit.
type AttemptsError struct {
	Attempts int
	Err      error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("completion failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error {
	return e.Err
}

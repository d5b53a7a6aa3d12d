package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lexara-id/lexara/internal/core"
)

// transientError marks provider failures worth retrying: rate limits,
// 5xx responses, wire errors. Anything unmarked propagates immediately.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps err so the retry policy will retry it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// RetryPolicy is an explicit bounded-backoff schedule. It replaces
// retry-by-recursion inside the providers: the providers classify errors,
// the policy decides whether to call again.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

type retryingProvider struct {
	inner  core.EmbeddingProvider
	policy RetryPolicy
}

// WithRetry wraps a provider with the policy. Only transient errors are
// retried; after the attempt budget is spent the last error surfaces as a
// hard failure.
func WithRetry(inner core.EmbeddingProvider, policy RetryPolicy) core.EmbeddingProvider {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &retryingProvider{inner: inner, policy: policy}
}

func (r *retryingProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.policy.delay(attempt - 1)):
			}
		}

		vecs, err := r.inner.EmbedTexts(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		slog.Warn("transient embedding failure, retrying",
			"attempt", attempt+1, "max_attempts", r.policy.MaxAttempts, "error", err)
	}
	return nil, lastErr
}

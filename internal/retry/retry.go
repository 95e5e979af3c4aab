package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
)

// DefaultStatuses are the transient HTTP statuses retried when none are configured.
var DefaultStatuses = []int{429, 500, 502, 503, 504}

// Fetcher is a decorator that retries transient failures with exponential
// backoff and jitter before delegating to the wrapped fetch.Fetcher.
type Fetcher struct {
	inner      fetch.Fetcher
	maxRetries int
	baseDelay  time.Duration
	statuses   map[int]bool
	logger     *slog.Logger
}

// New wraps a fetcher with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
// statuses is the set of HTTP statuses treated as transient; nil uses DefaultStatuses.
func New(inner fetch.Fetcher, maxRetries int, baseDelay time.Duration, statuses []int, logger *slog.Logger) *Fetcher {
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}
	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return &Fetcher{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		statuses:   set,
		logger:     logger,
	}
}

// Fetch attempts the request, retrying on transient errors.
func (f *Fetcher) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	resp, err := f.inner.Fetch(ctx, req)
	if err == nil {
		return resp, nil
	}

	if !f.isRetryable(err) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		delay := f.backoffDelay(attempt, lastErr)

		f.logger.Warn("retrying after transient error",
			"url", req.URL,
			"attempt", attempt,
			"max_retries", f.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		resp, err = f.inner.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}

		if !f.isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("giving up after %d retries: %w", f.maxRetries, lastErr)
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (f *Fetcher) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func (f *Fetcher) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation is never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return f.statuses[httpErr.StatusCode]
	}

	// Non-HTTP errors (network, DNS) are retryable.
	return true
}

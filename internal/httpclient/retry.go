package httpclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy controls when and how to retry after a response. Used by
// DoWithRetry.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries int
	// Retry429: on 429 Too Many Requests, back off and retry.
	Retry429 bool
	// Retry5xx: on 5xx, back off (exponentially, doubling each attempt) and retry.
	Retry5xx bool
	// Backoff is the base backoff; doubles each attempt with +/-25% jitter.
	Backoff time.Duration
}

// DefaultRetryPolicy retries 429 and 5xx up to 3 additional attempts with a
// 1s base backoff.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	Retry429:   true,
	Retry5xx:   true,
	Backoff:    1 * time.Second,
}

// hostLimiters is the process-global per-host rate limiter set. Every
// ingester shares the same limiter for a given upstream host, so a single
// noisy provider can't starve the others' time budget.
var (
	hostLimitersMu sync.Mutex
	hostLimiters   = map[string]*rate.Limiter{}
)

// limiterFor returns (creating if needed) a token-bucket limiter capped at
// 2 requests/sec with a burst of 4 for the given host.
func limiterFor(host string) *rate.Limiter {
	hostLimitersMu.Lock()
	defer hostLimitersMu.Unlock()
	l, ok := hostLimiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(2), 4)
		hostLimiters[host] = l
	}
	return l
}

// DoWithRetry performs req, rate-limited per host, and on 429/5xx (when the
// policy allows) waits with exponential backoff and retries up to
// policy.MaxRetries times. Other 4xx responses are never retried. The
// caller must close resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	if err := limiterFor(req.URL.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := limiterFor(req.URL.Host).Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			sleepBackoff(ctx, policy.Backoff, attempt)
			continue
		}

		shouldRetry := (resp.StatusCode == http.StatusTooManyRequests && policy.Retry429) ||
			(resp.StatusCode >= 500 && policy.Retry5xx)
		if !shouldRetry || attempt == maxRetries {
			return resp, nil
		}
		resp.Body.Close()
		sleepBackoff(ctx, policy.Backoff, attempt)
	}
	return nil, lastErr
}

// sleepBackoff waits base*2^attempt with +/-25% jitter, honoring ctx cancellation.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) {
	d := base << attempt
	jitter := time.Duration(float64(d) * (rand.Float64()*0.5 - 0.25))
	select {
	case <-time.After(d + jitter):
	case <-ctx.Done():
	}
}

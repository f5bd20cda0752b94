// Package httpclient provides the shared HTTP client used by the ingester
// contract: bounded timeouts, a per-host rate limiter, and
// exponential-backoff retry on 429/5xx responses.
package httpclient

import (
	"net/http"
	"time"
)

// Default returns an HTTP client with timeouts so a dead upstream provider
// never hangs a refresh step indefinitely.
func Default() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds requests to external providers when the caller does
// not supply its own limit.
const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the given total-request timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}

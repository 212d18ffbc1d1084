package delivery

import (
	"net/http"
	"time"
)

// Attempt describes a single HTTP attempt of a delivery
type Attempt struct {
	Number     int
	StatusCode int
	Duration   time.Duration
	Error      error
}

// AttemptHook is called after each delivery attempt
type AttemptHook func(req Request, attempt Attempt)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
// Useful for custom transports, proxies, or testing.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithBackoff sets the delay strategy between attempts.
// Default is a fixed one second interval.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(c *Client) {
		if strategy != nil {
			c.backoff = strategy
		}
	}
}

// WithMaxAttempts sets the total number of attempts, including the first one.
// Default is 5. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// WithOnAttempt sets a callback invoked after every attempt.
// Useful for metrics and debug logging.
func WithOnAttempt(hook AttemptHook) Option {
	return func(c *Client) {
		c.onAttempt = hook
	}
}

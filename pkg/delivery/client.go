package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts is the total number of attempts per request
	DefaultMaxAttempts = 5

	maxResponseBody = 64 * 1024
)

// Response is the successful answer of the analytics endpoint
type Response struct {
	StatusCode int
	// Body is best-effort: if reading it fails the delivery still counts
	// as successful, Body holds what was read and BodyErr the read error.
	Body     []byte
	BodyErr  error
	Attempts int
}

// Result is the terminal outcome of a delivery
type Result struct {
	Request  Request
	Response *Response
	Err      error
	Attempts int
	Duration time.Duration
}

// OK reports whether the delivery succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Client sends tracking requests to the analytics endpoint.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	client      *http.Client
	backoff     BackoffStrategy
	maxAttempts int
	onAttempt   AttemptHook
}

// NewClient creates a delivery client with a fixed one second backoff and
// five attempts per request.
func NewClient(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		backoff:     DefaultBackoffStrategy(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post delivers the request to {endpoint}/visits or {endpoint}/events.
// It blocks until the endpoint answers 200 or all attempts are exhausted;
// any other status or a transport error is retried after the backoff delay.
func (c *Client) Post(ctx context.Context, app AppInfo, endpoint string, req Request) (*Response, error) {
	resp, _, err := c.post(ctx, app, endpoint, req)
	return resp, err
}

// Deliver runs Post and packs the outcome into a Result
func (c *Client) Deliver(ctx context.Context, app AppInfo, endpoint string, req Request) Result {
	start := time.Now()
	resp, attempts, err := c.post(ctx, app, endpoint, req)
	return Result{
		Request:  req,
		Response: resp,
		Err:      err,
		Attempts: attempts,
		Duration: time.Since(start),
	}
}

func (c *Client) post(ctx context.Context, app AppInfo, endpoint string, req Request) (*Response, int, error) {
	target, err := targetURL(endpoint, req)
	if err != nil {
		return nil, 0, err
	}

	payload, err := Payload(app, req)
	if err != nil {
		return nil, 0, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: marshal payload: %w", ErrInvalidRequest, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, attempt - 1, fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, attempt-1, ctx.Err())
			case <-time.After(c.backoff.NextInterval(attempt - 1)):
			}
		}

		resp, info := c.attempt(ctx, target, body, req.ClientIP)
		info.Number = attempt
		if c.onAttempt != nil {
			c.onAttempt(req, info)
		}

		if info.Error == nil {
			resp.Attempts = attempt
			return resp, attempt, nil
		}
		lastErr = info.Error
	}

	return nil, c.maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, c.maxAttempts, lastErr)
}

// attempt makes a single HTTP request
func (c *Client) attempt(ctx context.Context, target string, body []byte, clientIP string) (*Response, Attempt) {
	start := time.Now()
	info := Attempt{}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		info.Duration = time.Since(start)
		info.Error = fmt.Errorf("create request: %w", err)
		return nil, info
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if clientIP != "" {
		httpReq.Header.Set("X-Forwarded-For", clientIP)
	}

	resp, err := c.client.Do(httpReq)
	info.Duration = time.Since(start)
	if err != nil {
		info.Error = err
		return nil, info
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode != http.StatusOK {
		msg := strings.ReplaceAll(string(respBody), "\n", " ")
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		info.Error = fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
		return nil, info
	}

	if readErr != nil {
		readErr = fmt.Errorf("read response body: %w", readErr)
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody, BodyErr: readErr}, info
}

// targetURL joins the endpoint with the path for the request type
func targetURL(endpoint string, req Request) (string, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return "", err
	}
	path, err := req.path()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(endpoint, "/") + path, nil
}

// ValidateEndpoint checks that endpoint is an absolute http or https URL
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidEndpoint)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidEndpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidEndpoint)
	}
	return nil
}

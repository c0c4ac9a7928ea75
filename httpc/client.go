// Package httpc wraps an HTTP client with the library's resilience
// policies: token-bucket rate limiting on admission, circuit breaking
// around the transport, and retry with backoff on transport errors and
// retryable status codes.
package httpc

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/roasbeef/baselib/breaker"
	"github.com/roasbeef/baselib/ctxtree"
	"github.com/roasbeef/baselib/ratelimit"
	"github.com/roasbeef/baselib/retry"
)

// requestIDHeader carries the generated per-request id, letting log lines
// on both sides of the wire be correlated.
const requestIDHeader = "X-Request-Id"

// StatusError is the error produced for responses whose status code marks
// the attempt as failed. Its message embeds the code, which is what the
// retry.HTTPStatusRetry predicate scans for.
type StatusError struct {
	// Code is the HTTP status code of the failed response.
	Code int
}

// Error returns the reason string for the failed response.
func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d", e.Code)
}

// Config holds the client parameters. Every policy is optional; a zero
// Config yields a plain pass-through client.
type Config struct {
	// Client is the underlying HTTP client. Nil uses
	// http.DefaultClient.
	Client *http.Client

	// Retry, when non-nil, re-sends failed requests under the policy.
	// Requests with a body are only retried when GetBody is set, since
	// the body must be rewound per attempt.
	Retry *retry.Policy

	// Breaker, when non-nil, short-circuits requests while open and
	// records each attempt's outcome.
	Breaker *breaker.Breaker

	// Limiter, when non-nil, gates request admission.
	Limiter *ratelimit.Limiter

	// FailOn decides which status codes fail an attempt. Nil marks
	// every code of 500 and above as a failure.
	FailOn func(statusCode int) bool
}

// Client is an HTTP client with resilience policies layered around the
// transport. It is safe for concurrent use.
type Client struct {
	cfg Config
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.FailOn == nil {
		cfg.FailOn = func(statusCode int) bool {
			return statusCode >= http.StatusInternalServerError
		}
	}

	return &Client{cfg: cfg}
}

// Do sends the request under the configured policies. The rate-limiter wait
// is not bounded by ctx; ctx is checked after that wait and again before
// each attempt, and an attempt made on a cancelled ctx fails with its
// reason. The transport follows the request's own context. On a failed
// attempt the response body is closed before the next attempt; the returned
// response's body is the caller's to close.
func (c *Client) Do(ctx *ctxtree.Context,
	req *http.Request) (*http.Response, error) {

	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)

	if c.cfg.Limiter != nil {
		c.cfg.Limiter.Wait()
	}
	if ctx != nil && ctx.IsCancelled() {
		return nil, ctx.Err()
	}

	attempt := func() (*http.Response, error) {
		return c.send(ctx, req, reqID)
	}

	// A request whose body cannot be rewound is only safe to send once,
	// so it bypasses the retry policy.
	if c.cfg.Retry == nil || (req.Body != nil && req.GetBody == nil) {
		return attempt()
	}

	return retry.DoValue(c.cfg.Retry, attempt)
}

// send performs a single attempt, routed through the breaker when one is
// configured.
func (c *Client) send(ctx *ctxtree.Context, req *http.Request,
	reqID string) (*http.Response, error) {

	if ctx != nil && ctx.IsCancelled() {
		return nil, ctx.Err()
	}

	do := func() (*http.Response, error) {
		return c.roundTrip(req, reqID)
	}

	if c.cfg.Breaker != nil {
		return breaker.Call(c.cfg.Breaker, do)
	}

	return do()
}

// roundTrip sends the request once, rewinding the body for repeat attempts
// and converting failing status codes into a StatusError.
func (c *Client) roundTrip(req *http.Request,
	reqID string) (*http.Response, error) {

	// Rewind the body for this attempt if the request has one. Do never
	// retries a request without GetBody, so a drained body is never
	// resent.
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w",
				err)
		}
		req.Body = body
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		log.DebugS(req.Context(), "Request attempt failed",
			"request_id", reqID, "url", req.URL.String(),
			"error", err.Error())

		return nil, err
	}

	if c.cfg.FailOn(resp.StatusCode) {
		// Close the failed attempt's body; this response is never
		// handed to the caller.
		resp.Body.Close()

		log.DebugS(req.Context(), "Request attempt returned "+
			"failing status",
			"request_id", reqID, "status", resp.StatusCode)

		return nil, &StatusError{Code: resp.StatusCode}
	}

	return resp, nil
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/clientops/clientops/apierror"
	"github.com/clientops/clientops/resilience"
)

// Quota headers reported by the backend. Parsed case-insensitively by
// net/http header access.
const (
	headerRetryAfter        = "Retry-After"
	headerRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRemainingTokens   = "X-RateLimit-Remaining-Tokens"
	headerResetAfter        = "X-RateLimit-Reset-After"
)

// Config configures the HTTP transport.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string

	// Headers are static headers attached to every request. The operation
	// layer supplies authentication here; the transport never constructs
	// credentials itself.
	Headers map[string]string

	// HTTPClient overrides the underlying client.
	// Default: pooled client with a 30 second timeout for unary calls.
	HTTPClient *http.Client

	// StreamClient overrides the client used for streaming calls.
	// Default: pooled client with no overall timeout (the caller's context
	// bounds each read instead).
	StreamClient *http.Client

	// Limiter, when set, receives backend-reported quota from every
	// response's headers.
	Limiter *resilience.RateLimiter
}

// Client sends requests to one HTTP backend and classifies failures into
// the shared error taxonomy. It is safe for concurrent use.
type Client struct {
	config  Config
	unary   *http.Client
	streams *http.Client
}

// Request is an operation-layer supplied request.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// Response is a fully-read unary response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// New creates a transport client.
func New(config Config) *Client {
	unary := config.HTTPClient
	if unary == nil {
		unary = &http.Client{Timeout: 30 * time.Second}
	}
	streams := config.StreamClient
	if streams == nil {
		streams = &http.Client{}
	}
	return &Client{config: config, unary: unary, streams: streams}
}

// Send issues one unary request and reads the whole response. Non-2xx
// statuses are returned as classified errors; the response body's
// structured detail rides along on the error.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, apierror.Client("failed to build request", err)
	}

	resp, err := c.unary.Do(httpReq)
	if err != nil {
		return nil, classifyNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.Transient("failed to read response body", err)
	}

	c.reconcileQuota(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, resp.Header, body)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// SendStreaming issues one long-lived request and returns the raw byte
// source. The caller owns the returned body and must close it; a stream
// session normally does so when it finishes.
func (c *Client) SendStreaming(ctx context.Context, req Request) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, apierror.Client("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streams.Do(httpReq)
	if err != nil {
		return nil, classifyNetworkError(err)
	}

	c.reconcileQuota(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, resp.Header, body)
	}

	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.config.BaseURL+req.Path, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return httpReq, nil
}

func (c *Client) reconcileQuota(h http.Header) {
	if c.config.Limiter == nil {
		return
	}
	quota := ParseQuota(h)
	if quota.RemainingRequests >= 0 || quota.RemainingTokens >= 0 || quota.ResetAfter > 0 {
		c.config.Limiter.UpdateFromHeaders(quota)
	}
}

// ParseQuota extracts backend-reported quota from response headers.
// Absent dimensions are reported as negative.
func ParseQuota(h http.Header) resilience.ServerQuota {
	quota := resilience.ServerQuota{RemainingRequests: -1, RemainingTokens: -1}

	if v := h.Get(headerRemainingRequests); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			quota.RemainingRequests = n
		}
	}
	if v := h.Get(headerRemainingTokens); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			quota.RemainingTokens = n
		}
	}
	if v := h.Get(headerResetAfter); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			quota.ResetAfter = time.Duration(secs * float64(time.Second))
		}
	}

	return quota
}

// ParseRetryAfter reads a Retry-After header as either integer seconds or
// an HTTP date. Returns zero when absent or unparseable.
func ParseRetryAfter(h http.Header) time.Duration {
	v := h.Get(headerRetryAfter)
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// errorBody is the structured error payload backends return alongside
// non-2xx statuses.
type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyStatus turns a non-2xx response into a typed error: 429 and 5xx
// are transient, the rest of 4xx are client errors.
func classifyStatus(status int, header http.Header, body []byte) error {
	msg := http.StatusText(status)
	detail := map[string]any{}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
		msg = eb.Error.Message
		if eb.Error.Type != "" {
			detail["type"] = eb.Error.Type
		}
	}

	err := &apierror.Error{
		Kind:       apierror.KindForStatus(status),
		Message:    msg,
		Status:     status,
		RetryAfter: ParseRetryAfter(header),
	}
	if len(detail) > 0 {
		err.Detail = detail
	}
	return err
}

// classifyNetworkError turns a transport-level failure into a typed
// error. Timeouts and connection failures are transient; caller
// cancellation passes through so it is never retried.
func classifyNetworkError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.Transient("request timed out", err)
	}
	return apierror.Transient("request failed", err)
}

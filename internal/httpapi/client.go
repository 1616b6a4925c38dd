package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-render/pkg/chessdto"
	"github.com/valyala/fasthttp"
)

// Client calls a remote render API.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) (*chessdto.HealthResponse, error) {
	body, err := c.do(ctx, fasthttp.MethodGet, PathHealth, nil)
	if err != nil {
		return nil, err
	}
	var out chessdto.HealthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// RenderFEN returns the PNG bytes of fen.
func (c *Client) RenderFEN(ctx context.Context, fen string) ([]byte, error) {
	return c.do(ctx, fasthttp.MethodPost, PathRenderFEN, []byte(fen))
}

// RenderPGN returns the PNG bytes after move (1-based), or of the final
// position when move <= 0.
func (c *Client) RenderPGN(ctx context.Context, pgn string, move int) ([]byte, error) {
	path := PathRenderPGN
	if move > 0 {
		q := url.Values{}
		q.Set("move", strconv.Itoa(move))
		path += "?" + q.Encode()
	}
	return c.do(ctx, fasthttp.MethodPost, path, []byte(pgn))
}

// do performs the request and returns a copy of the response body. Non-2xx
// responses are returned as chessdto.ErrorResponse.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if body != nil {
		req.Header.SetContentType("text/plain; charset=utf-8")
		req.SetBody(body)
	}

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return append([]byte(nil), resp.Body()...), nil
			}
			apiErr := decodeError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return nil, apiErr
			}
			lastErr = apiErr
		}
		if attempt == attempts {
			break
		}
		if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return nil, lastErr
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func decodeError(status int, body []byte) error {
	var dto chessdto.ErrorResponse
	if err := json.Unmarshal(body, &dto); err != nil || dto.Code == "" {
		return chessdto.ErrorResponse{
			Code:    chessdto.CodeGeneric,
			Message: fmt.Sprintf("render api error: status=%d body=%s", status, truncate(string(body), 512)),
		}
	}
	return dto
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

// Only gateway errors are retried.
func shouldRetryStatus(code int) bool {
	switch code {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

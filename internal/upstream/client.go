// Package upstream is the HTTP client every third-party API call goes through.
// It sets the bearer token, decodes JSON and turns every failure into *Error.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/observability"
)

const maxErrorBody = 4 << 10

//go:generate mockgen -source client.go -destination=client_mock_test.go -package=upstream

type Breaker interface {
	Allow() error
	Success()
	Failure()
}

// Response carries the metadata callers need besides the decoded body.
type Response struct {
	Status int
	Header http.Header
	// TotalCount is the x-total-count header value, -1 when absent or invalid.
	TotalCount int
}

type Client struct {
	name    string
	baseURL string
	token   string
	http    *http.Client
	breaker Breaker
	logger  *zap.Logger
	metrics observability.Metrics
}

func New(name string, cfg config.Upstream, brk Breaker, logger *zap.Logger) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: brk,
		logger:  logger.With(zap.String("upstream", name)),
		metrics: observability.NewNoop(),
	}
}

// WithMetrics reports the duration and status of every request to m.
func (c *Client) WithMetrics(m observability.Metrics) *Client {
	if m != nil {
		c.metrics = m
	}
	return c
}

func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) (Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, body, out any) (Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do performs one request. There are no retries: a failure is reported to the
// caller, who decides whether the user should try again.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) (Response, error) {
	resp := Response{TotalCount: -1}

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			c.logger.Warn("circuit breaker is open", zap.String("path", path))
			return resp, &Error{Kind: KindNetwork, Message: MsgConnection, Err: err}
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return resp, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return resp, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	durMs := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		c.metrics.ObserveUpstream(c.name, 0, durMs)
		c.failure()
		c.logger.Error("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return resp, &Error{Kind: KindNetwork, Message: MsgConnection, Err: err}
	}
	defer res.Body.Close()

	c.metrics.ObserveUpstream(c.name, res.StatusCode, durMs)
	resp.Status = res.StatusCode
	resp.Header = res.Header
	if v := res.Header.Get("X-Total-Count"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			resp.TotalCount = n
		}
	}

	if res.StatusCode >= 500 {
		c.failure()
	} else {
		c.success()
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		c.logger.Warn("unexpected status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.ByteString("body", raw),
		)
		return resp, statusError(res.StatusCode, raw)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		c.logger.Error("decode response", zap.String("path", path), zap.Error(err))
		return resp, &Error{Kind: KindDecode, Status: res.StatusCode, Message: MsgDecode, Err: err}
	}
	return resp, nil
}

func statusError(status int, body []byte) *Error {
	e := &Error{Status: status, Err: errors.New(http.StatusText(status))}
	switch status {
	case http.StatusUnauthorized:
		e.Kind = KindUnauthorized
		e.Message = MsgTokenExpired
	case http.StatusPaymentRequired, http.StatusConflict:
		e.Kind = KindBusiness
		e.Message = bodyMessage(body)
	default:
		e.Kind = KindUpstream
		e.Message = MsgUpstream
	}
	return e
}

// bodyMessage extracts {"message": "..."} from an error body when present.
func bodyMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return payload.Message
	}
	return ""
}

func (c *Client) success() {
	if c.breaker != nil {
		c.breaker.Success()
	}
}

func (c *Client) failure() {
	if c.breaker != nil {
		c.breaker.Failure()
	}
}

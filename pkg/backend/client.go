// Package backend is the outbound client for the storefront REST backend.
// Every authenticated-path cart, auth, and profile call goes through it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/aromahaus/storefront-client/pkg/config"
	pkgerrors "github.com/aromahaus/storefront-client/pkg/errors"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/metrics"
)

const requestBodyReadLimit int64 = 1 << 20

var (
	errBaseURLRequired = errors.New("backend base url is required")
	errLoggerRequired  = errors.New("backend logger is required")

	// errServerStatus marks 5xx responses inside the breaker so they count
	// as failures while the body stays available for error mapping.
	errServerStatus = errors.New("backend returned a server error status")
)

// roundTripResult is what one backend call yields once the body is drained.
type roundTripResult struct {
	status int
	body   []byte
}

// TokenSource supplies the bearer token attached to authenticated calls.
// An empty token means the call goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

// Client talks to the storefront backend with centralized auth headers,
// logging, circuit breaking, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[*roundTripResult]
	logger     *logger.Logger
	metrics    *metrics.ClientMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics attaches client metrics to outbound calls.
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds the backend client and its circuit breaker.
func NewClient(cfg config.BackendConfig, tokens TokenSource, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if tokens == nil {
		tokens = TokenSourceFunc(func() string { return "" })
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		baseURL:    baseURL,
		tokens:     tokens,
		logger:     logg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.breaker = gobreaker.NewCircuitBreaker[*roundTripResult](gobreaker.Settings{
		Name:        "storefront-backend",
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: readyToTrip(cfg),
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "backend breaker state change")
		},
	})

	return c, nil
}

func readyToTrip(cfg config.BackendConfig) func(gobreaker.Counts) bool {
	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.BreakerFailureRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// do executes one JSON round trip and decodes the response into out when the
// call succeeds. There is no automatic retry: cart mutations must fire at
// most once per user action.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+operation+" request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+operation+" request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (*roundTripResult, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		if err != nil {
			return nil, err
		}
		rt := &roundTripResult{status: resp.StatusCode, body: raw}
		if resp.StatusCode >= http.StatusInternalServerError {
			return rt, errServerStatus
		}
		return rt, nil
	})
	c.metrics.ObserveRemote(operation, time.Since(start))
	if err != nil {
		if errors.Is(err, errServerStatus) && result != nil {
			return c.mapStatusError(ctx, operation, result.status, result.body)
		}
		lctx := c.logger.WithFields(ctx, map[string]any{
			"operation": operation,
			"method":    method,
			"path":      path,
		})
		c.logger.Error(lctx, "backend call failed", err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend unavailable")
		}
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "execute "+operation)
	}

	if result.status < http.StatusOK || result.status >= http.StatusMultipleChoices {
		return c.mapStatusError(ctx, operation, result.status, result.body)
	}

	if out == nil || len(result.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "decode "+operation+" response")
	}
	return nil
}

func (c *Client) mapStatusError(ctx context.Context, operation string, status int, raw []byte) error {
	message := remoteMessage(raw)
	lctx := c.logger.WithFields(ctx, map[string]any{
		"operation": operation,
		"status":    status,
		"message":   message,
	})
	c.logger.Warn(lctx, "backend returned error status")

	code := pkgerrors.CodeRemote
	switch status {
	case http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	}
	if message == "" {
		message = fmt.Sprintf("%s returned status %d", operation, status)
	}
	return pkgerrors.New(code, message).WithDetails(map[string]any{"status": status})
}

func remoteMessage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	if envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return envelope.Message
}

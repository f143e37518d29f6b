// Package api is the HTTP client for the repair shop API. It attaches the
// stored credentials to every request and owns the single-retry refresh
// protocol for 401 responses.
package api

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

	"github.com/google/uuid"
	"github.com/jrsteele09/repairshop-client/expiry"
	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
	"github.com/jrsteele09/repairshop-client/internal/metrics"
	"github.com/jrsteele09/repairshop-client/sessions"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LoginPath          = "/auth/login"
	DefaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 1 << 20
)

// Teardowner forcibly ends the session.
type Teardowner interface {
	Run(ctx context.Context, reason string)
}

// LoginResponse is the payload of both login and refresh.
type LoginResponse struct {
	AccessToken string         `json:"accessToken"`
	User        *users.Profile `json:"user"`
}

// Client sends requests through the authenticating transport and handles 401s.
type Client struct {
	baseURL   *url.URL
	store     *sessions.Store
	policy    RefreshPolicy
	timeout   time.Duration
	base      http.RoundTripper
	http      *http.Client
	refresher *Refresher
	teardown  Teardowner
	logger    zerolog.Logger
	metrics   metrics.Recorder
}

type Option func(*Client)

func WithRefreshPolicy(policy RefreshPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

func WithTeardown(teardown Teardowner) Option {
	return func(c *Client) {
		c.teardown = teardown
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithBaseTransport sets the transport below the authenticating layer.
func WithBaseTransport(base http.RoundTripper) Option {
	return func(c *Client) {
		c.base = base
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = recorder
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://host/api/v1.
// Without WithTeardown a 401 only clears the store.
func New(baseURL string, store *sessions.Store, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		store:   store,
		policy:  DefaultRefreshPolicy(),
		timeout: DefaultHTTPTimeout,
		logger:  log.Logger,
		metrics: metrics.NoOp{},
	}
	for _, opt := range options {
		opt(c)
	}
	c.policy = c.policy.withDefaults()
	c.logger = c.logger.With().Str("component", "api_client").Logger()

	c.http = &http.Client{
		Transport: NewTransport(c.base, store),
		Timeout:   c.timeout,
	}
	raw := &http.Client{
		Transport: NewTransport(c.base, nil),
		Timeout:   c.timeout,
	}
	c.refresher = newRefresher(raw, c.resolve(c.policy.Endpoint), store, c.policy, c.logger, c.metrics)

	if c.teardown == nil {
		c.teardown = expiry.NewTeardown(store, nil, nil, expiry.WithTeardownLogger(c.logger), expiry.WithTeardownMetrics(c.metrics))
	}
	return c, nil
}

// Refresher returns the refresh operation bound to this client's store.
func (c *Client) Refresher() *Refresher {
	return c.refresher
}

// Policy returns the refresh policy in effect.
func (c *Client) Policy() RefreshPolicy {
	return c.policy
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL.String() + path
}

// call is the state of one logical request across its at most two attempts.
type call struct {
	method  string
	path    string
	query   url.Values
	body    []byte
	header  http.Header
	retried bool
}

func (cl *call) isLogin() bool {
	p := cl.path
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	return strings.TrimSuffix(p, "/") == LoginPath
}

// Do sends one request. A 2xx body is decoded into out when out is non-nil.
// Non-2xx responses are returned as *APIError; a 401 that ends the session
// also matches ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	cl := &call{
		method: method,
		path:   path,
		query:  query,
		header: make(http.Header),
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s body", method, path)
		}
		cl.body = encoded
		cl.header.Set("Content-Type", "application/json")
	}
	cl.header.Set("Accept", "application/json")
	cl.header.Set(CorrelationIDHeader, uuid.NewString())

	resp, err := c.execute(ctx, cl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}

// execute runs the response state machine: pass successes through, turn
// failures into APIErrors and give a 401 at most one refreshed retry.
func (c *Client) execute(ctx context.Context, cl *call) (*http.Response, error) {
	for {
		resp, err := c.send(ctx, cl)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := c.toAPIError(cl, resp)
		if resp.StatusCode != http.StatusUnauthorized || cl.isLogin() {
			return nil, apiErr
		}

		if !c.policy.Enabled || cl.retried {
			c.logger.Info().Str("path", cl.path).Str("correlation_id", apiErr.CorrelationID).Msg("unauthorized, ending session")
			c.teardown.Run(ctx, metrics.TeardownUnauthorized)
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, apiErr)
		}

		cl.retried = true
		session, ok := c.refresher.RefreshFrom(ctx, bearerOf(resp.Request))
		if !ok {
			c.teardown.Run(ctx, metrics.TeardownRefreshFailed)
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, apiErr)
		}

		c.logger.Debug().Str("path", cl.path).Str("correlation_id", apiErr.CorrelationID).Msg("retrying with refreshed token")
		c.metrics.RecordRetry(resp.StatusCode)
		cl.header.Set(AuthorizationHeader, "Bearer "+session.Token)
	}
}

func (c *Client) send(ctx context.Context, cl *call) (*http.Response, error) {
	target := c.resolve(cl.path)
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", cl.method, cl.path)
	}
	for k, v := range cl.header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRequest(cl.method, 0, time.Since(start))
		c.logger.Debug().Err(err).Str("method", cl.method).Str("path", cl.path).Msg("request failed")
		return nil, err
	}
	c.metrics.RecordRequest(cl.method, resp.StatusCode, time.Since(start))
	c.logger.Debug().
		Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Str("correlation_id", correlationOf(resp)).
		Msg("request completed")
	return resp, nil
}

// toAPIError consumes and closes the response body.
func (c *Client) toAPIError(cl *call, resp *http.Response) *APIError {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	problem := &ProblemDetails{}
	if err := json.Unmarshal(data, problem); err != nil || (problem.Title == "" && problem.Detail == "" && problem.Status == 0 && len(problem.Errors) == 0) {
		problem = &ProblemDetails{Title: fmt.Sprintf("Request failed with status code %d", resp.StatusCode)}
	}
	if problem.Status == 0 {
		problem.Status = resp.StatusCode
	}

	return &APIError{
		Method:        cl.method,
		Path:          cl.path,
		Status:        resp.StatusCode,
		Problem:       problem,
		CorrelationID: correlationOf(resp),
	}
}

// correlationOf prefers the id the server echoed over the one we sent.
func correlationOf(resp *http.Response) string {
	for _, h := range []string{CorrelationIDHeader, requestIDHeader} {
		if id := resp.Header.Get(h); id != "" {
			return id
		}
	}
	if resp.Request != nil {
		return resp.Request.Header.Get(CorrelationIDHeader)
	}
	return ""
}

func bearerOf(req *http.Request) string {
	if req == nil {
		return ""
	}
	const prefix = "Bearer "
	h := req.Header.Get(AuthorizationHeader)
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/linkhoard/linkhoard/cache"
	"github.com/linkhoard/linkhoard/observe"
	"github.com/linkhoard/linkhoard/ratelimit"
)

// TokenSource supplies the current credential for outbound requests.
// An empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// tokenSetter is the optional write side of a TokenSource.
type tokenSetter interface {
	SetToken(token string)
	ClearToken()
}

// Config configures a Client.
type Config struct {
	// BaseURL is the upstream service root, e.g. "https://api.linkhoard.dev".
	// Required.
	BaseURL string

	// Transport dispatches individual attempts.
	// Default: NewHTTPTransport(nil)
	Transport Transport

	// Cache is the request cache for idempotent reads. Nil disables caching.
	Cache *cache.RequestCache

	// Limiter is the admission controller. Nil disables admission control.
	Limiter *ratelimit.Limiter

	// Tokens supplies the credential attached to each request. Optional.
	Tokens TokenSource

	// Timeout bounds each individual dispatch attempt.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRetries is how many times a retryable failure is redispatched
	// after the initial attempt.
	// Default: 3
	MaxRetries int

	// RetryBaseDelay is the backoff before the first retry; attempt n
	// waits RetryBaseDelay * 2^(n-1).
	// Default: 250ms
	RetryBaseDelay time.Duration

	// CacheTTL is the TTL for cached read results.
	// Default: the cache's default TTL.
	CacheTTL time.Duration

	// HealthPath is probed by HealthCheck.
	// Default: "/health"
	HealthPath string

	// Logger receives per-attempt diagnostics. Default: no-op.
	Logger observe.Logger

	// Metrics receives request metrics. Default: no-op.
	Metrics observe.Metrics
}

// Client coordinates the cache, the admission controller, and the
// retrying transport for every outbound call.
type Client struct {
	baseURL        string
	transport      Transport
	cache          *cache.RequestCache
	limiter        *ratelimit.Limiter
	tokens         TokenSource
	timeout        time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	cacheTTL       time.Duration
	healthPath     string
	logger         observe.Logger
	metrics        observe.Metrics

	flights singleflight.Group
}

// New creates a Client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport(nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 250 * time.Millisecond
	}
	if cfg.CacheTTL <= 0 && cfg.Cache != nil {
		cfg.CacheTTL = cfg.Cache.DefaultTTL()
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		transport:      cfg.Transport,
		cache:          cfg.Cache,
		limiter:        cfg.Limiter,
		tokens:         cfg.Tokens,
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		cacheTTL:       cfg.CacheTTL,
		healthPath:     cfg.HealthPath,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}, nil
}

// Request runs one logical request through the full pipeline and returns
// the raw response body. Failures are always *Error values.
func (c *Client) Request(ctx context.Context, d Descriptor) ([]byte, error) {
	meta := d.meta()
	start := time.Now()

	data, err := c.request(ctx, d, meta)
	c.metrics.RecordRequest(ctx, meta, time.Since(start), err)
	return data, err
}

func (c *Client) request(ctx context.Context, d Descriptor, meta observe.OpMeta) ([]byte, error) {
	// Stage 1: admission. A rejection fails fast; it is never dispatched
	// and never retried.
	if c.limiter != nil {
		key := d.RateKey()
		if !c.limiter.Admit(key) {
			c.metrics.RecordAdmissionReject(ctx, meta)
			info := c.limiter.Info(key)
			c.logger.Warn(ctx, "request rejected by admission control",
				observe.F("op", d.Op()),
				observe.F("remaining", info.Remaining),
				observe.F("reset", info.Reset),
			)
			return nil, admissionRejected(d.Op(), info)
		}
	}

	// Stage 2: cache check, reads only.
	if d.CacheEligible() && c.cache != nil {
		key, err := d.CacheKey()
		if err != nil {
			// An unkeyable descriptor is dispatched uncached.
			c.logger.Debug(ctx, "cache key derivation failed", observe.F("op", d.Op()), observe.F("error", err.Error()))
			return c.dispatch(ctx, d, meta)
		}

		if data, ok := c.cache.Get(key); ok {
			c.metrics.RecordCache(ctx, meta, true)
			return data, nil
		}
		c.metrics.RecordCache(ctx, meta, false)

		// Concurrent identical reads collapse into one dispatch; every
		// waiter observes the same outcome.
		v, err, _ := c.flights.Do(key, func() (any, error) {
			if data, ok := c.cache.Get(key); ok {
				return data, nil
			}
			data, err := c.dispatch(ctx, d, meta)
			if err != nil {
				return nil, err
			}
			c.cache.Set(key, data, c.cacheTTL)
			return data, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]byte), nil
	}

	// Stages 3-5 for everything else.
	return c.dispatch(ctx, d, meta)
}

// dispatch sends the request, retrying retryable failures with
// exponential backoff. Only the final outcome is returned; intermediate
// failures are logged.
func (c *Client) dispatch(ctx context.Context, d Descriptor, meta observe.OpMeta) ([]byte, error) {
	reqURL, body, err := c.prepare(d)
	if err != nil {
		return nil, &Error{
			Kind:    KindValidation,
			Op:      d.Op(),
			Message: "request could not be serialized",
			Err:     err,
		}
	}

	var lastErr *Error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		resp, sendErr := c.transport.Send(ctx, strings.ToUpper(d.Method), reqURL, c.headers(d), body, c.timeout)

		if sendErr == nil && resp.Status < 400 {
			return resp.Body, nil
		}

		status := 0
		if sendErr == nil {
			status = resp.Status
		}
		lastErr = Classify(d.Op(), status, sendErr)

		if !lastErr.Retryable || attempt > c.maxRetries {
			break
		}

		delay := c.retryBaseDelay << (attempt - 1)
		c.logger.Warn(ctx, "retryable failure, backing off",
			observe.F("op", d.Op()),
			observe.F("kind", string(lastErr.Kind)),
			observe.F("status", lastErr.Status),
			observe.F("attempt", attempt),
			observe.F("delay_ms", delay.Milliseconds()),
		)
		c.metrics.RecordRetry(ctx, meta)

		select {
		case <-ctx.Done():
			return nil, Classify(d.Op(), 0, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// prepare builds the attempt URL and serialized body for a descriptor.
func (c *Client) prepare(d Descriptor) (string, []byte, error) {
	reqURL := c.baseURL + d.Path
	if len(d.Query) > 0 {
		values := url.Values{}
		for k, v := range d.Query {
			values.Set(k, v)
		}
		reqURL += "?" + values.Encode()
	}

	var body []byte
	if d.Body != nil {
		data, err := json.Marshal(d.Body)
		if err != nil {
			return "", nil, err
		}
		body = data
	}

	return reqURL, body, nil
}

func (c *Client) headers(d Descriptor) map[string]string {
	headers := map[string]string{
		"Accept": "application/json",
	}
	if d.Body != nil {
		headers["Content-Type"] = "application/json"
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			headers["Authorization"] = "Bearer " + token
		}
	}
	return headers
}

// Get issues a cacheable GET request.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	return c.Request(ctx, Descriptor{Method: http.MethodGet, Path: path, Query: query})
}

// GetJSON issues a GET request and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query map[string]string, out any) error {
	data, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Kind:    KindUnknown,
			Op:      http.MethodGet + " " + path,
			Message: "response could not be decoded",
			Err:     err,
		}
	}
	return nil
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Request(ctx, Descriptor{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Request(ctx, Descriptor{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) ([]byte, error) {
	return c.Request(ctx, Descriptor{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.Request(ctx, Descriptor{Method: http.MethodDelete, Path: path})
}

// SetToken replaces the live credential when the configured TokenSource
// supports it.
func (c *Client) SetToken(token string) {
	if s, ok := c.tokens.(tokenSetter); ok {
		s.SetToken(token)
	}
}

// ClearToken removes the live credential when the configured TokenSource
// supports it.
func (c *Client) ClearToken() {
	if s, ok := c.tokens.(tokenSetter); ok {
		s.ClearToken()
	}
}

// Cache exposes the request cache so callers can invalidate reads after
// mutations they know about. Nil when caching is disabled.
func (c *Client) Cache() *cache.RequestCache {
	return c.cache
}

// HealthCheck probes the upstream with a single lightweight request,
// bypassing the cache, admission control, and retry. It reports probe
// success only.
func (c *Client) HealthCheck(ctx context.Context) bool {
	resp, err := c.transport.Send(ctx, http.MethodGet, c.baseURL+c.healthPath, c.headers(Descriptor{}), nil, c.timeout)
	if err != nil {
		c.logger.Debug(ctx, "health probe failed", observe.F("error", err.Error()))
		return false
	}
	return resp.Status < 400
}

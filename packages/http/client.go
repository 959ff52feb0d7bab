package http

import (
	"context"
	"sync"
	"time"
)

// DefaultAccept mirrors what browser-style API clients send by default.
const DefaultAccept = "application/json, text/plain, */*"

// Client is the request pipeline. Its settings are owned by the instance
// and may be changed at runtime through the setters.
//
// Every call copies the current settings when it is built. A setter that
// races with a call may or may not be seen by it; setters are last write
// wins, and callers that need ordering must serialize their own setter
// calls. The lock only keeps the copy itself consistent.
type Client struct {
	mu       sync.RWMutex
	settings settings

	transport       Transport
	transportConfig TransportConfig
	logger          Logger
	retry           RetryPolicy
}

type settings struct {
	baseURL        string
	timeout        time.Duration
	defaultHeaders map[string]string
	authToken      string
}

func (s settings) clone() settings {
	s.defaultHeaders = cloneHeaders(s.defaultHeaders)
	return s
}

type ClientOption func(*Client)

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		settings: settings{
			baseURL: baseURL,
			timeout: DefaultTimeout,
			defaultHeaders: map[string]string{
				"Accept": DefaultAccept,
			},
		},
		transportConfig: DefaultTransportConfig(),
		logger:          NopLogger{},
		retry:           DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewNetTransport(c.transportConfig)
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.settings.timeout = d
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.settings.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.settings.defaultHeaders[k] = v
		}
	}
}

func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.settings.authToken = token
	}
}

// WithTransport replaces the net/http transport. Transport options such as
// WithProxy have no effect once a custom transport is set.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

func WithLogger(l Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetryPolicy sets the policy returned by RetryPolicy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.transportConfig.FollowRedirects = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.transportConfig.MaxRedirects = max
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.transportConfig.ValidateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.transportConfig.ProxyURL = proxyURL
	}
}

// WithValidateStatus sets which statuses the default transport accepts.
func WithValidateStatus(fn func(statusCode int) bool) ClientOption {
	return func(c *Client) {
		c.transportConfig.ValidateStatus = fn
	}
}

// SetAuthToken makes every request issued after this call carry
// "Authorization: Bearer <token>". Requests already in flight keep the
// headers they were built with.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.settings.authToken = token
	c.mu.Unlock()
}

func (c *Client) RemoveAuthToken() {
	c.mu.Lock()
	c.settings.authToken = ""
	c.mu.Unlock()
}

func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.settings.baseURL = baseURL
	c.mu.Unlock()
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.baseURL
}

// RetryPolicy returns the client's configured retry policy, for use with
// WithRetry.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retry
}

func (c *Client) snapshot() settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.clone()
}

// buildRequest resolves the URL, merges headers and encodes the body.
// Header precedence, lowest first: defaults, bearer token, per-call.
func (c *Client) buildRequest(s settings, method, path string, body any, call *callOptions) (*Request, error) {
	req := NewRequest(method, ResolveURL(s.baseURL, path))

	for k, v := range s.defaultHeaders {
		req.SetHeader(k, v)
	}
	if s.authToken != "" {
		deleteHeader(req.Headers, "Authorization")
		req.SetHeader("Authorization", "Bearer "+s.authToken)
	}

	data, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	req.SetBody(data)
	if contentType != "" && !hasHeader(req.Headers, "Content-Type") && !hasHeader(call.headers, "Content-Type") {
		req.SetHeader("Content-Type", contentType)
	}

	for k, v := range call.headers {
		deleteHeader(req.Headers, k)
		req.SetHeader(k, v)
	}
	for k, v := range call.query {
		req.SetQueryParam(k, v)
	}
	req.URL = req.BuildURL()

	if err := ValidateURL(req.URL); err != nil {
		return nil, err
	}

	req.SetTimeout(s.timeout)
	if call.timeout > 0 {
		req.SetTimeout(call.timeout)
	}

	return req, nil
}

// send runs one call through the pipeline: build, log, dispatch, classify.
func send[T any](ctx context.Context, c *Client, method, path string, body any, opts []CallOption) (*Envelope[T], error) {
	call := newCallOptions(opts)
	req, err := c.buildRequest(c.snapshot(), method, path, body, call)
	if err != nil {
		perr := newSetupError(err)
		c.logFailure(ctx, FailureEvent{
			Method: method,
			URL:    path,
			Kind:   perr.Kind(),
			Err:    perr,
		})
		return nil, perr
	}

	c.logRequest(ctx, RequestEvent{
		Method: method,
		Path:   path,
		URL:    req.URL,
		Body:   req.Body,
	})

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		perr := Classify(err)
		event := FailureEvent{
			Method:   method,
			URL:      req.URL,
			Kind:     perr.Kind(),
			Err:      perr,
			Duration: time.Since(start),
		}
		if srvErr, ok := perr.(*ServerError); ok {
			event.StatusCode = srvErr.StatusCode
			event.Body = srvErr.Body
		}
		c.logFailure(ctx, event)
		return nil, perr
	}

	env, err := newEnvelope[T](resp)
	if err != nil {
		perr := newSetupError(err)
		c.logFailure(ctx, FailureEvent{
			Method:     method,
			URL:        req.URL,
			Kind:       perr.Kind(),
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Err:        perr,
			Duration:   resp.Duration,
		})
		return nil, perr
	}

	c.logResponse(ctx, ResponseEvent{
		Method:     method,
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Duration:   resp.Duration,
	})
	return env, nil
}

func (c *Client) logRequest(ctx context.Context, e RequestEvent) {
	safeLog(func() { c.logger.LogRequest(ctx, e) })
}

func (c *Client) logResponse(ctx context.Context, e ResponseEvent) {
	safeLog(func() { c.logger.LogResponse(ctx, e) })
}

func (c *Client) logFailure(ctx context.Context, e FailureEvent) {
	safeLog(func() { c.logger.LogFailure(ctx, e) })
}

package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Transport performs one HTTP exchange. On failure it should return a
// *TransportFailure describing how far the exchange got; any other error is
// treated as a failure before the request existed.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// TransportFailure is the failure shape a Transport reports. Response is set
// when the server answered; Request is set once the request was dispatched.
type TransportFailure struct {
	Request  *Request
	Response *Response
	Err      error
}

func (f *TransportFailure) Error() string {
	if f.Err != nil {
		return f.Err.Error()
	}
	if f.Response != nil {
		return fmt.Sprintf("request failed with status code %d", f.Response.StatusCode)
	}
	return "transport failure"
}

func (f *TransportFailure) Unwrap() error {
	return f.Err
}

// TransportConfig configures the net/http backed transport.
type TransportConfig struct {
	FollowRedirects bool
	MaxRedirects    int
	ValidateSSL     bool
	ProxyURL        string

	// ValidateStatus decides which statuses count as success. Anything it
	// rejects is reported with the response attached.
	ValidateStatus func(statusCode int) bool
}

func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		FollowRedirects: true,
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     true,
		ValidateStatus:  DefaultValidateStatus,
	}
}

// DefaultValidateStatus accepts 2xx and 3xx.
func DefaultValidateStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 400
}

// NetTransport is the default Transport, built on net/http.
type NetTransport struct {
	httpClient     *http.Client
	validateStatus func(int) bool
}

func NewNetTransport(cfg TransportConfig) *NetTransport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !cfg.ValidateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := neturl.Parse(cfg.ProxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.MaxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	validate := cfg.ValidateStatus
	if validate == nil {
		validate = DefaultValidateStatus
	}

	return &NetTransport{
		httpClient: &http.Client{
			Transport:     transport,
			CheckRedirect: redirectPolicy,
		},
		validateStatus: validate,
	}
}

func (t *NetTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytesReader(req.Body))
	if err != nil {
		return nil, err
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportFailure{Request: req, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, &TransportFailure{Request: req, Err: fmt.Errorf("read response body: %w", err)}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		StatusText: statusText(httpResp),
		Headers:    map[string][]string(httpResp.Header.Clone()),
		Body:       respBody,
		Duration:   duration,
	}

	if !t.validateStatus(resp.StatusCode) {
		return nil, &TransportFailure{
			Request:  req,
			Response: resp,
			Err:      fmt.Errorf("request failed with status code %d", resp.StatusCode),
		}
	}

	return resp, nil
}

// statusText strips the numeric prefix net/http puts on Status.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

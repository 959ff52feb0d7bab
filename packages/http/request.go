package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Request is a fully resolved request handed to a Transport.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	Timeout     time.Duration
	QueryParams map[string]string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      method,
		URL:         requestURL,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// Header returns the value of the named header, matching case-insensitively.
func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// CallOption overrides client settings for a single call.
type CallOption func(*callOptions)

type callOptions struct {
	headers map[string]string
	query   map[string]string
	timeout time.Duration
}

func newCallOptions(opts []CallOption) *callOptions {
	o := &callOptions{
		headers: make(map[string]string),
		query:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHeader sets a header on this call only. It overrides default headers
// and the bearer token.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		o.headers[key] = value
	}
}

func WithHeaders(headers map[string]string) CallOption {
	return func(o *callOptions) {
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithQuery adds a query parameter to the resolved URL.
func WithQuery(key, value string) CallOption {
	return func(o *callOptions) {
		o.query[key] = value
	}
}

// WithCallTimeout replaces the client timeout for this call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

var absoluteURLPattern = regexp.MustCompile(`(?i)^[a-z][a-z\d+\-.]*://`)

// IsAbsoluteURL reports whether path already carries a scheme.
func IsAbsoluteURL(path string) bool {
	return absoluteURLPattern.MatchString(path)
}

// ResolveURL joins path onto baseURL unless path is already absolute.
func ResolveURL(baseURL, path string) string {
	if baseURL == "" || IsAbsoluteURL(path) {
		return path
	}
	if path == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

// encodeBody serializes a request payload. Byte slices, strings and readers
// are sent untouched; everything else is encoded as JSON.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case json.RawMessage:
		return b, "application/json", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// deleteHeader removes every case variant of key.
func deleteHeader(h map[string]string, key string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
}

// hasHeader reports whether h carries key in any case.
func hasHeader(h map[string]string, key string) bool {
	for k := range h {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}

package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

func (s Source) String() string {
	switch s {
	case SourceBody:
		return "body"
	case SourceHeader:
		return "header"
	case SourceStatus:
		return "status"
	case SourceDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Capture names one value to pull out of a response.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse reads a capture in the form name=source.path. A bare path with no
// source prefix is treated as a body path.
func Parse(spec string) (*Capture, error) {
	name, expr, ok := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	expr = strings.TrimSpace(expr)
	if !ok || name == "" || expr == "" {
		return nil, fmt.Errorf("invalid capture %q: expected name=source.path", spec)
	}

	c := &Capture{Name: name}
	source, path, _ := strings.Cut(expr, ".")
	switch source {
	case "body":
		c.Source = SourceBody
		c.Path = path
	case "header":
		if path == "" {
			return nil, fmt.Errorf("invalid capture %q: header name required", spec)
		}
		c.Source = SourceHeader
		c.Path = path
	case "status":
		c.Source = SourceStatus
	case "duration":
		c.Source = SourceDuration
	default:
		c.Source = SourceBody
		c.Path = expr
	}
	return c, nil
}

// ParseAll parses every spec, stopping at the first invalid one.
func ParseAll(specs []string) ([]*Capture, error) {
	captures := make([]*Capture, 0, len(specs))
	for _, s := range specs {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

type Extractor struct {
	statusCode int
	headers    map[string][]string
	raw        []byte
	duration   time.Duration
	bodyJSON   gjson.Result
	isJSON     bool
}

// FromEnvelope builds an extractor over a successful call.
func FromEnvelope[T any](env *http.Envelope[T]) *Extractor {
	return newExtractor(env.StatusCode, env.Headers, env.Raw, env.Duration)
}

// FromServerError builds an extractor over a rejected response, so error
// bodies can be captured the same way.
func FromServerError(err *http.ServerError) *Extractor {
	return newExtractor(err.StatusCode, err.Headers, err.Body, 0)
}

func newExtractor(status int, headers map[string][]string, raw []byte, d time.Duration) *Extractor {
	e := &Extractor{
		statusCode: status,
		headers:    headers,
		raw:        raw,
		duration:   d,
	}
	if gjson.ValidBytes(raw) && len(raw) > 0 {
		e.bodyJSON = gjson.ParseBytes(raw)
		e.isJSON = true
	}
	return e
}

func (e *Extractor) Extract(c *Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceStatus:
		return e.statusCode, true
	case SourceDuration:
		return e.duration.Milliseconds(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.isJSON {
		if path == "" && len(e.raw) > 0 {
			return string(e.raw), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	resp := &http.Response{Headers: e.headers}
	value := resp.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll runs every capture. Captures that find nothing are left out.
func (e *Extractor) ExtractAll(captures []*Capture) map[string]any {
	results := make(map[string]any)
	for _, c := range captures {
		if value, ok := e.Extract(c); ok {
			results[c.Name] = value
		}
	}
	return results
}

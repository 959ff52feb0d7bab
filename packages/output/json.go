package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/restpipe/packages/history"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// JSONResult represents one successful call
type JSONResult struct {
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	StatusCode int                 `json:"statusCode"`
	Status     string              `json:"status"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       json.RawMessage     `json:"body,omitempty"`
	Duration   float64             `json:"duration"`
	Captures   map[string]any      `json:"captures,omitempty"`
}

// JSONError represents a failed call
type JSONError struct {
	Kind       string          `json:"kind"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// JSONHistoryEntry represents one stored call
type JSONHistoryEntry struct {
	Method   string  `json:"method"`
	URL      string  `json:"url"`
	Status   int     `json:"status"`
	Kind     string  `json:"kind,omitempty"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration"`
	Time     string  `json:"time"`
}

// JSONFormatter writes one JSON document per call
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(r *Result) {
	f.encode(JSONResult{
		Method:     r.Method,
		URL:        r.URL,
		StatusCode: r.StatusCode,
		Status:     r.StatusText,
		Headers:    r.Headers,
		Body:       rawJSON(r.Body),
		Duration:   float64(r.Duration.Milliseconds()),
		Captures:   r.Captures,
	})
}

func (f *JSONFormatter) FormatError(err error) {
	out := JSONError{
		Kind:    http.KindOf(err).String(),
		Message: err.Error(),
	}
	var srvErr *http.ServerError
	if errors.As(err, &srvErr) {
		out.StatusCode = srvErr.StatusCode
		out.Body = rawJSON(srvErr.Body)
	}
	f.encode(map[string]JSONError{"error": out})
}

func (f *JSONFormatter) FormatHistory(entries []history.Entry) {
	out := make([]JSONHistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = JSONHistoryEntry{
			Method:   e.Method,
			URL:      e.URL,
			Status:   e.Status,
			Kind:     e.Kind,
			Error:    e.Error,
			Duration: float64(e.Duration.Milliseconds()),
			Time:     e.CreatedAt.Format(time.RFC3339),
		}
	}
	f.encode(out)
}

func (f *JSONFormatter) FormatStats(stats map[string]int) {
	if stats == nil {
		stats = map[string]int{}
	}
	f.encode(stats)
}

func (f *JSONFormatter) encode(v any) {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}

// rawJSON embeds valid JSON as-is and anything else as a JSON string.
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restpipe/packages/history"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// Result is one completed call as shown to the user.
type Result struct {
	Method     string
	URL        string
	StatusCode int
	StatusText string
	Headers    map[string][]string
	Body       []byte
	Duration   time.Duration
	Captures   map[string]any
}

// ResultFromEnvelope copies the display fields out of an envelope.
func ResultFromEnvelope[T any](method, url string, env *http.Envelope[T]) *Result {
	return &Result{
		Method:     method,
		URL:        url,
		StatusCode: env.StatusCode,
		StatusText: env.StatusText,
		Headers:    env.Headers,
		Body:       env.Raw,
		Duration:   env.Duration,
	}
}

// Formatter writes results, errors and history listings.
type Formatter interface {
	FormatResult(r *Result)
	FormatError(err error)
	FormatHistory(entries []history.Entry)
	FormatStats(stats map[string]int)
}

type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ParseFormat maps a flag value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatConsole, "text":
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected console or json)", s)
	}
}

// New returns the formatter for format writing to w.
func New(format Format, w io.Writer, verbose, noColor bool) Formatter {
	if format == FormatJSON {
		return NewJSONFormatter(JSONWithWriter(w))
	}
	return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor))
}

package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/abdul-hamid-achik/restpipe/packages/history"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgYellow, color.Bold)
	case code >= 300:
		return color.New(color.FgCyan, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

func (f *ConsoleFormatter) FormatResult(r *Result) {
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	status := statusColor(r.StatusCode).Sprintf("%d %s", r.StatusCode, r.StatusText)
	fmt.Fprintf(f.writer, "%s %s %s %s\n", bold(r.Method), r.URL, status, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

	if f.verbose {
		f.writeHeaders(r.Headers)
	}

	if len(r.Body) > 0 {
		fmt.Fprintf(f.writer, "%s\n", prettyBody(r.Body))
	}

	if len(r.Captures) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", bold("Captures:"))
		for _, name := range sortedKeys(r.Captures) {
			fmt.Fprintf(f.writer, "  %s = %s\n", name, formatValue(r.Captures[name], 100))
		}
	}
}

func (f *ConsoleFormatter) writeHeaders(headers map[string][]string) {
	dim := color.New(color.Faint).SprintFunc()
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(f.writer, "%s\n", dim(k+": "+v))
		}
	}
	fmt.Fprintln(f.writer)
}

// FormatError prints err with its pipeline error kind. Server errors also
// show the status and the response body.
func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	kind := http.KindOf(err)
	if kind == http.KindUnknown {
		fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
		return
	}

	fmt.Fprintf(f.writer, "%s %s %v\n", red("Error:"), yellow("["+kind.String()+"]"), err)

	var srvErr *http.ServerError
	if errors.As(err, &srvErr) {
		if f.verbose {
			f.writeHeaders(srvErr.Headers)
		}
		if len(srvErr.Body) > 0 {
			fmt.Fprintf(f.writer, "%s\n", prettyBody(srvErr.Body))
		}
	}
}

func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(f.writer, "No history recorded.")
		return
	}

	red := color.New(color.FgRed).SprintFunc()

	t := f.newTable()
	t.AppendHeader(table.Row{"time", "method", "url", "status", "outcome", "duration"})
	for _, e := range entries {
		status := "-"
		if e.Status > 0 {
			status = statusColor(e.Status).Sprintf("%d", e.Status)
		}
		outcome := "ok"
		if e.Failed() {
			outcome = red(e.Kind)
		}
		t.AppendRow(table.Row{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Method,
			e.URL,
			status,
			outcome,
			fmt.Sprintf("%dms", e.Duration.Milliseconds()),
		})
	}
	t.Render()
}

// FormatStats prints call counts per outcome, in name order.
func (f *ConsoleFormatter) FormatStats(stats map[string]int) {
	if len(stats) == 0 {
		fmt.Fprintln(f.writer, "No history recorded.")
		return
	}

	t := f.newTable()
	t.AppendHeader(table.Row{"outcome", "calls"})
	total := 0
	for _, outcome := range sortedKeys(stats) {
		t.AppendRow(table.Row{outcome, stats[outcome]})
		total += stats[outcome]
	}
	t.AppendFooter(table.Row{"total", total})
	t.Render()
}

func (f *ConsoleFormatter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatUpper
	t.Style().Format.Footer = text.FormatUpper
	return t
}

// prettyBody indents JSON bodies and returns anything else unchanged.
func prettyBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

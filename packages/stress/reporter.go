package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Reporter renders a load run: a header, a live status line and the final
// summary.
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool

	ok    *color.Color
	fail  *color.Color
	note  *color.Color
	title *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the live status line
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	r.ok = r.newColor(color.FgGreen)
	r.fail = r.newColor(color.FgRed)
	r.note = r.newColor(color.FgCyan)
	r.title = r.newColor(color.Bold)
	return r
}

// newColor scopes the no-color choice to this reporter instead of the
// process-wide color.NoColor switch.
func (r *Reporter) newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if r.noColor {
		c.DisableColor()
	}
	return c
}

// newTable returns a borderless table that writes to the reporter's writer.
func (r *Reporter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.writer)
	t.SetStyle(table.StyleLight)
	t.Style().Options = table.OptionsNoBordersAndSeparators
	t.Style().Format.Header = text.FormatLower
	return t
}

// Header prints the target and the run shape.
func (r *Reporter) Header(target string, config *Config) {
	fmt.Fprintln(r.writer)
	r.title.Fprintln(r.writer, "restpipe load")
	if target != "" {
		r.note.Fprintf(r.writer, "  %s\n", target)
	}

	shape := fmt.Sprintf("  %s req/s for %s, at most %d in flight",
		strconv.FormatFloat(config.Rate, 'f', -1, 64), config.Duration, config.MaxConcurrency)
	if config.RampUp > 0 {
		shape += fmt.Sprintf(", ramping up over %s", config.RampUp)
	}
	fmt.Fprintln(r.writer, shape)
	fmt.Fprintln(r.writer)
}

const progressWidth = 24

// Progress redraws the single status line.
func (r *Reporter) Progress(stats CurrentStats, duration time.Duration) {
	if r.noProgress {
		return
	}

	done := 1.0
	if duration > 0 && stats.Elapsed < duration {
		done = float64(stats.Elapsed) / float64(duration)
	}
	filled := int(done * progressWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressWidth-filled)

	failed := fmt.Sprintf("%d failed", stats.Errors)
	if stats.Errors > 0 {
		failed = r.fail.Sprint(failed)
	}

	fmt.Fprintf(r.writer, "\r\033[K[%s] %3.0f%%  %s calls  %s  %.1f req/s  p95 %s  in flight %d",
		bar, done*100, groupDigits(stats.Total), failed, stats.RPS, latency(stats.P95), stats.InFlight)
}

// ClearProgress erases the status line.
func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\r\033[K")
}

// Summary prints totals, failures by kind, latency and threshold results.
func (r *Reporter) Summary(summary *Summary, thresholdResults []ThresholdResult) {
	fmt.Fprintln(r.writer)
	r.title.Fprintln(r.writer, "LOAD SUMMARY")

	totals := r.newTable()
	totals.AppendRows([]table.Row{
		{"duration", summary.Duration.Round(time.Millisecond), ""},
		{"calls", groupDigits(summary.TotalRequests), fmt.Sprintf("%.1f req/s", summary.RPS)},
		{"succeeded", groupDigits(summary.SuccessCount), percent(summary.SuccessRate)},
		{"failed", groupDigits(summary.ErrorCount), percent(summary.ErrorRate)},
	})
	if summary.ErrorCount > 0 {
		for _, k := range summary.kindCounts() {
			if k.count > 0 {
				totals.AppendRow(table.Row{"  " + k.name, groupDigits(k.count), ""})
			}
		}
	}
	totals.Render()

	fmt.Fprintln(r.writer)
	r.title.Fprintln(r.writer, "LATENCY")
	lat := r.newTable()
	lat.AppendHeader(table.Row{"p50", "p95", "p99", "min", "mean", "max", "stddev"})
	lat.AppendRow(table.Row{
		latency(summary.P50), latency(summary.P95), latency(summary.P99),
		latency(summary.Min), latency(summary.Mean), latency(summary.Max), latency(summary.StdDev),
	})
	lat.Render()

	if len(thresholdResults) > 0 {
		fmt.Fprintln(r.writer)
		r.title.Fprintln(r.writer, "THRESHOLDS")
		failed := 0
		for _, tr := range thresholdResults {
			mark := r.ok.Sprint("pass")
			if !tr.Passed {
				mark = r.fail.Sprint("FAIL")
				failed++
			}
			fmt.Fprintf(r.writer, "  %s  %s %s (actual %s)\n", mark, tr.Name, tr.Expected, tr.Actual)
		}
		if failed > 0 {
			r.fail.Fprintf(r.writer, "\n%d of %d thresholds failed\n", failed, len(thresholdResults))
		} else {
			r.ok.Fprintln(r.writer, "\nall thresholds passed")
		}
	}

	fmt.Fprintln(r.writer)
}

type jsonSummary struct {
	Duration   string           `json:"duration"`
	Requests   jsonRequests     `json:"requests"`
	Errors     map[string]int64 `json:"errors"`
	Rates      jsonRates        `json:"rates"`
	LatencyMs  map[string]int64 `json:"latency"`
	Thresholds []jsonThreshold  `json:"thresholds,omitempty"`
}

type jsonRequests struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
}

type jsonRates struct {
	RPS         float64 `json:"rps"`
	SuccessRate float64 `json:"successRate"`
	ErrorRate   float64 `json:"errorRate"`
}

type jsonThreshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// JSONSummary writes the summary as one indented JSON document.
func (r *Reporter) JSONSummary(summary *Summary, thresholdResults []ThresholdResult) error {
	out := jsonSummary{
		Duration: summary.Duration.String(),
		Requests: jsonRequests{
			Total:   summary.TotalRequests,
			Success: summary.SuccessCount,
			Failed:  summary.ErrorCount,
		},
		Errors: make(map[string]int64),
		Rates: jsonRates{
			RPS:         summary.RPS,
			SuccessRate: summary.SuccessRate,
			ErrorRate:   summary.ErrorRate,
		},
		LatencyMs: map[string]int64{
			"p50":    summary.P50.Milliseconds(),
			"p95":    summary.P95.Milliseconds(),
			"p99":    summary.P99.Milliseconds(),
			"min":    summary.Min.Milliseconds(),
			"max":    summary.Max.Milliseconds(),
			"mean":   summary.Mean.Milliseconds(),
			"stddev": summary.StdDev.Milliseconds(),
		},
	}
	for _, k := range summary.kindCounts() {
		out.Errors[k.key] = k.count
	}
	for _, tr := range thresholdResults {
		out.Thresholds = append(out.Thresholds, jsonThreshold(tr))
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// Error prints an error message
func (r *Reporter) Error(format string, args ...any) {
	r.fail.Fprintf(r.writer, "Error: "+format+"\n", args...)
}

// Info prints an info message
func (r *Reporter) Info(format string, args ...any) {
	fmt.Fprintf(r.writer, format+"\n", args...)
}

type kindCount struct {
	key   string
	name  string
	count int64
}

func (s *Summary) kindCounts() []kindCount {
	return []kindCount{
		{"server", "server error", s.ServerErrors},
		{"no_response", "no response", s.NoResponseErrors},
		{"request_setup", "request setup", s.SetupErrors},
		{"other", "other", s.OtherErrors},
	}
}

func latency(d time.Duration) string {
	switch {
	case d <= 0:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < 10*time.Second:
		return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 1, 64) + "ms"
	}
	return d.Round(100 * time.Millisecond).String()
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

// groupDigits renders n with thousands separators.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

package logging

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// DefaultMaxBody is how many bytes of a body end up in a log line.
const DefaultMaxBody = 1024

// PipelineLogger writes pipeline events to slog.
type PipelineLogger struct {
	logger  *slog.Logger
	maxBody int
}

func NewPipelineLogger(logger *slog.Logger) *PipelineLogger {
	if logger == nil {
		logger = For("http")
	}
	return &PipelineLogger{logger: logger, maxBody: DefaultMaxBody}
}

// WithMaxBody returns a copy that truncates bodies at n bytes. n <= 0
// drops bodies from log lines entirely.
func (l *PipelineLogger) WithMaxBody(n int) *PipelineLogger {
	cp := *l
	cp.maxBody = n
	return &cp
}

func (l *PipelineLogger) LogRequest(ctx context.Context, e http.RequestEvent) {
	attrs := []slog.Attr{
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.String("url", e.URL),
	}
	if body := l.body(e.Body); body != "" {
		attrs = append(attrs, slog.String("body", body))
	}
	l.logger.LogAttrs(ctx, slog.LevelDebug, "request", attrs...)
}

func (l *PipelineLogger) LogResponse(ctx context.Context, e http.ResponseEvent) {
	attrs := []slog.Attr{
		slog.String("method", e.Method),
		slog.String("url", e.URL),
		slog.Int("status", e.StatusCode),
		slog.Duration("duration", e.Duration),
	}
	if body := l.body(e.Body); body != "" {
		attrs = append(attrs, slog.String("body", body))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "response", attrs...)
}

func (l *PipelineLogger) LogFailure(ctx context.Context, e http.FailureEvent) {
	attrs := []slog.Attr{
		slog.String("method", e.Method),
		slog.String("url", e.URL),
		slog.String("kind", e.Kind.String()),
		slog.Duration("duration", e.Duration),
	}
	if e.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", e.StatusCode))
	}
	if body := l.body(e.Body); body != "" {
		attrs = append(attrs, slog.String("body", body))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	l.logger.LogAttrs(ctx, slog.LevelWarn, "request failed", attrs...)
}

func (l *PipelineLogger) body(b []byte) string {
	if len(b) == 0 || l.maxBody <= 0 {
		return ""
	}
	if len(b) <= l.maxBody {
		return string(b)
	}
	cut := b[:l.maxBody]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "...(truncated)"
}

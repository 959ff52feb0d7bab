package http

import (
	"context"
	"time"
)

// Logger receives the pipeline's log points. Implementations must be safe
// for concurrent use. A Logger cannot affect the outcome of a call: panics
// are recovered and dropped.
type Logger interface {
	LogRequest(ctx context.Context, e RequestEvent)
	LogResponse(ctx context.Context, e ResponseEvent)
	LogFailure(ctx context.Context, e FailureEvent)
}

// RequestEvent is emitted before dispatch.
type RequestEvent struct {
	Method string
	Path   string
	URL    string
	Body   []byte
}

// ResponseEvent is emitted after a successful call.
type ResponseEvent struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// FailureEvent is emitted after a failed call. StatusCode and Body are only
// set for server errors.
type FailureEvent struct {
	Method     string
	URL        string
	Kind       ErrorKind
	StatusCode int
	Body       []byte
	Err        error
	Duration   time.Duration
}

type NopLogger struct{}

func (NopLogger) LogRequest(context.Context, RequestEvent)   {}
func (NopLogger) LogResponse(context.Context, ResponseEvent) {}
func (NopLogger) LogFailure(context.Context, FailureEvent)   {}

// MultiLogger fans every event out to each logger in order. One logger
// panicking does not stop the others.
type MultiLogger []Logger

func (m MultiLogger) LogRequest(ctx context.Context, e RequestEvent) {
	for _, l := range m {
		safeLog(func() { l.LogRequest(ctx, e) })
	}
}

func (m MultiLogger) LogResponse(ctx context.Context, e ResponseEvent) {
	for _, l := range m {
		safeLog(func() { l.LogResponse(ctx, e) })
	}
}

func (m MultiLogger) LogFailure(ctx context.Context, e FailureEvent) {
	for _, l := range m {
		safeLog(func() { l.LogFailure(ctx, e) })
	}
}

func safeLog(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrorKind identifies which stage of a call failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindServer means the remote endpoint answered with a rejected status.
	KindServer
	// KindNoResponse means the request went out and nothing came back.
	KindNoResponse
	// KindRequestSetup means the request never left the process.
	KindRequestSetup
)

func (k ErrorKind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindNoResponse:
		return "no_response"
	case KindRequestSetup:
		return "request_setup"
	default:
		return "unknown"
	}
}

// PipelineError is implemented by exactly three types: *ServerError,
// *NoResponseError and *RequestSetupError. Use errors.As to tell them apart.
type PipelineError interface {
	error
	Kind() ErrorKind
	pipelineError()
}

// ServerError is returned when the transport completed and the response
// status was rejected.
type ServerError struct {
	StatusCode int
	StatusText string
	Body       []byte
	Headers    map[string][]string
	Err        error
}

func (e *ServerError) Error() string {
	if e.StatusText != "" {
		return fmt.Sprintf("server responded %d %s", e.StatusCode, e.StatusText)
	}
	return fmt.Sprintf("server responded %d", e.StatusCode)
}

func (e *ServerError) Unwrap() error { return e.Err }
func (e *ServerError) Kind() ErrorKind { return KindServer }
func (e *ServerError) pipelineError() {}
func (e *ServerError) BodyString() string { return string(e.Body) }

// Field looks up a gjson path in the error body.
func (e *ServerError) Field(path string) gjson.Result {
	return gjson.GetBytes(e.Body, path)
}

// DecodeBody unmarshals the error body into v.
func (e *ServerError) DecodeBody(v any) error {
	if len(e.Body) == 0 {
		return nil
	}
	return json.Unmarshal(e.Body, v)
}

// IsClientError reports a 4xx status. These are not worth retrying.
func (e *ServerError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// NoResponseError is returned when the request was dispatched but no
// response arrived: timeouts, resets, DNS failures, cancellation.
type NoResponseError struct {
	Method string
	URL    string
	Err    error
}

func (e *NoResponseError) Error() string {
	if e.Err == nil {
		return "no response received"
	}
	return fmt.Sprintf("no response received: %v", e.Err)
}

func (e *NoResponseError) Unwrap() error { return e.Err }
func (e *NoResponseError) Kind() ErrorKind { return KindNoResponse }
func (e *NoResponseError) pipelineError() {}

// RequestSetupError is returned when the request could not be built or
// dispatched. Message is the message of the underlying failure.
type RequestSetupError struct {
	Message string
	Err     error
}

func (e *RequestSetupError) Error() string { return e.Message }
func (e *RequestSetupError) Unwrap() error { return e.Err }
func (e *RequestSetupError) Kind() ErrorKind { return KindRequestSetup }
func (e *RequestSetupError) pipelineError() {}

func newSetupError(err error) *RequestSetupError {
	return &RequestSetupError{Message: err.Error(), Err: err}
}

// Classify maps a transport failure onto a PipelineError. The decision is
// made on what the failure carries, never on its message: a response wins,
// then a request, and anything else is a setup failure.
func Classify(err error) PipelineError {
	if err == nil {
		return nil
	}

	var perr PipelineError
	if errors.As(err, &perr) {
		return perr
	}

	var tf *TransportFailure
	if errors.As(err, &tf) {
		switch {
		case tf.Response != nil:
			return &ServerError{
				StatusCode: tf.Response.StatusCode,
				StatusText: tf.Response.StatusText,
				Body:       tf.Response.Body,
				Headers:    tf.Response.Headers,
				Err:        err,
			}
		case tf.Request != nil:
			return &NoResponseError{
				Method: tf.Request.Method,
				URL:    tf.Request.URL,
				Err:    tf.Err,
			}
		}
	}

	return newSetupError(err)
}

// KindOf returns the kind of the first PipelineError in err's chain.
func KindOf(err error) ErrorKind {
	var perr PipelineError
	if errors.As(err, &perr) {
		return perr.Kind()
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying: no response at all, or
// a server error that is not a 4xx other than 408 and 429.
func IsTransient(err error) bool {
	var noResp *NoResponseError
	if errors.As(err, &noResp) {
		return true
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		switch srvErr.StatusCode {
		case 408, 429:
			return true
		}
		return srvErr.StatusCode >= 500
	}
	return false
}

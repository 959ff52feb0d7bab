package http

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingClient(err error) *Client {
	return NewClient("http://api.test", WithTransport(TransportFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return nil, err
	})))
}

func TestClassify_ResponseMeansServerError(t *testing.T) {
	for code := 400; code <= 599; code++ {
		resp := &Response{StatusCode: code, StatusText: "x", Body: []byte(`{"code":1}`)}
		_, err := Get[any](context.Background(), failingClient(&TransportFailure{
			Request:  NewRequest("GET", "http://api.test"),
			Response: resp,
			Err:      fmt.Errorf("status %d", code),
		}), "/x")

		var srvErr *ServerError
		require.ErrorAs(t, err, &srvErr, "status %d", code)
		assert.Equal(t, code, srvErr.StatusCode)
		assert.Equal(t, resp.Body, srvErr.Body)
	}
}

func TestClassify_RequestOnlyMeansNoResponse(t *testing.T) {
	messages := []string{"timeout", "connection reset by peer", "404 not found", "no such host", ""}
	for _, msg := range messages {
		_, err := Get[any](context.Background(), failingClient(&TransportFailure{
			Request: NewRequest("GET", "http://api.test/x"),
			Err:     errors.New(msg),
		}), "/x")

		var noResp *NoResponseError
		require.ErrorAs(t, err, &noResp, "message %q", msg)
		assert.Equal(t, KindNoResponse, noResp.Kind())
	}
}

func TestClassify_NeitherMeansSetupError(t *testing.T) {
	underlying := errors.New("invalid header field value")

	_, err := Get[any](context.Background(), failingClient(underlying), "/x")

	var setupErr *RequestSetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, underlying.Error(), setupErr.Message)
	assert.ErrorIs(t, err, underlying)

	_, err = Get[any](context.Background(), failingClient(&TransportFailure{Err: underlying}), "/x")
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, underlying.Error(), setupErr.Message)
}

func TestClassify_PassesPipelineErrorsThrough(t *testing.T) {
	original := &NoResponseError{Err: errors.New("x")}
	assert.Same(t, original, Classify(fmt.Errorf("wrapped: %w", original)))
	assert.Nil(t, Classify(nil))
}

func TestClassify_ExactlyOneKind(t *testing.T) {
	failures := []error{
		&TransportFailure{Request: &Request{}, Response: &Response{StatusCode: 500}},
		&TransportFailure{Request: &Request{}},
		&TransportFailure{},
		errors.New("plain"),
	}
	want := []ErrorKind{KindServer, KindNoResponse, KindRequestSetup, KindRequestSetup}

	for i, f := range failures {
		perr := Classify(f)
		assert.Equal(t, want[i], perr.Kind())

		matches := 0
		var s *ServerError
		var n *NoResponseError
		var r *RequestSetupError
		if errors.As(perr, &s) {
			matches++
		}
		if errors.As(perr, &n) {
			matches++
		}
		if errors.As(perr, &r) {
			matches++
		}
		assert.Equal(t, 1, matches)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&NoResponseError{}, true},
		{&ServerError{StatusCode: 500}, true},
		{&ServerError{StatusCode: 503}, true},
		{&ServerError{StatusCode: 429}, true},
		{&ServerError{StatusCode: 408}, true},
		{&ServerError{StatusCode: 404}, false},
		{&ServerError{StatusCode: 400}, false},
		{&RequestSetupError{Message: "bad"}, false},
		{errors.New("other"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransient(tt.err), "%v", tt.err)
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "server", KindServer.String())
	assert.Equal(t, "no_response", KindNoResponse.String())
	assert.Equal(t, "request_setup", KindRequestSetup.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}

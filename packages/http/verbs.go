package http

import (
	"context"
	"net/http"
)

// Get issues a GET through c and decodes the response body into T.
// Failures are always a PipelineError.
func Get[T any](ctx context.Context, c *Client, path string, opts ...CallOption) (*Envelope[T], error) {
	return send[T](ctx, c, http.MethodGet, path, nil, opts)
}

// Post encodes body (JSON unless it is already bytes, a string or a reader)
// and issues a POST.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...CallOption) (*Envelope[T], error) {
	return send[T](ctx, c, http.MethodPost, path, body, opts)
}

func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...CallOption) (*Envelope[T], error) {
	return send[T](ctx, c, http.MethodPut, path, body, opts)
}

func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...CallOption) (*Envelope[T], error) {
	return send[T](ctx, c, http.MethodPatch, path, body, opts)
}

func Delete[T any](ctx context.Context, c *Client, path string, opts ...CallOption) (*Envelope[T], error) {
	return send[T](ctx, c, http.MethodDelete, path, nil, opts)
}

// Do issues a request with an arbitrary method. The CLI uses it when the
// method comes from user input.
func Do[T any](ctx context.Context, c *Client, method, path string, body any, opts ...CallOption) (*Envelope[T], error) {
	return send[T](ctx, c, method, path, body, opts)
}
